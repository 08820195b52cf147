package models

// Top level nodes of the realtime keyspace.
const (
	UsersRef             = "users"
	TasksRef             = "tasks"
	MessagesRef          = "messages"
	UserMessagesRef      = "user-messages"
	UserConversationsRef = "user-conversations"
	ReviewsRef           = "reviews"
	AccountsRef          = "accounts"
	ProfileImagesPrefix  = "profile_images"
)

// Record field names. They match the keys written by the mobile clients and
// must not change.
const (
	KeyUserID          = "userId"
	KeyEmailAddress    = "emailAddress"
	KeyFullName        = "fullName"
	KeyProfileImageURL = "profileImageURLString"
	KeyFCMToken        = "fcmToken"

	KeyTaskCategory    = "taskCategory"
	KeyTaskTitle       = "taskTitle"
	KeyTaskDescription = "taskDescription"
	KeyTaskBudget      = "taskBudget"
	KeyIsTaskOnline    = "isTaskOnline"
	KeyLatitude        = "latitude"
	KeyLongitude       = "longitude"
	KeyStringLocation  = "stringLocation"
	KeyCreationDate    = "creationDate"

	KeyRating            = "rating"
	KeyReviewDescription = "reviewDescription"

	KeyText        = "text"
	KeyFromID      = "fromId"
	KeyToID        = "toId"
	KeyTaskID      = "taskId"
	KeyTimeStamp   = "timeStamp"
	KeyTaskOwnerID = "taskOwnerId"

	KeyMessageID    = "messageId"
	KeyPasswordHash = "passwordHash"
)

// Defaults applied to offline tasks stored without a location.
const (
	DefaultLatitude  = 41.390205
	DefaultLongitude = 2.154007
)
