package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sudo-init-do/juggle/internal/fanout"
	"github.com/sudo-init-do/juggle/internal/log"
	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/realtime"
	"github.com/sudo-init-do/juggle/internal/session"
	"github.com/sudo-init-do/juggle/internal/validate"
)

// Service implements task and review operations on the realtime store.
type Service struct {
	store  realtime.Store
	writer *fanout.Writer
	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
}

func NewService(store realtime.Store, writer *fanout.Writer) *Service {
	return &Service{
		store:  store,
		writer: writer,
		now:    time.Now,
		newID:  models.NewID,
		logger: log.WithComponent("marketplace"),
	}
}

// CreateTask validates in and stores it as a new task owned by the session
// user. Nothing is written when validation fails.
func (s *Service) CreateTask(ctx context.Context, sess session.Session, in TaskInput) (models.Task, error) {
	if !sess.Valid() {
		return models.Task{}, session.ErrUnauthenticated
	}
	budget, err := ValidateTask(in)
	if err != nil {
		return models.Task{}, err
	}

	task := models.Task{
		ID:           s.newID(),
		UserID:       sess.UserID,
		Title:        in.Title,
		Description:  in.Description,
		Category:     in.Category,
		Budget:       budget,
		IsOnline:     in.IsOnline,
		CreationDate: s.now().UTC(),
	}
	if !in.IsOnline {
		lat, lon, loc := *in.Latitude, *in.Longitude, *in.StringLocation
		task.Latitude, task.Longitude, task.StringLocation = &lat, &lon, &loc
	}

	if err := s.writer.WriteTask(ctx, task); err != nil {
		return models.Task{}, fmt.Errorf("create task: %w", err)
	}
	s.logger.Info().Str("task_id", task.ID).Str("user_id", sess.UserID).Str("category", task.Category).Msg("task created")
	return task, nil
}

// DeleteTask removes a task. Only its owner may delete it.
func (s *Service) DeleteTask(ctx context.Context, sess session.Session, ownerID, taskID string) error {
	if !sess.Valid() {
		return session.ErrUnauthenticated
	}
	if err := checkIDs("owner", ownerID, "id", taskID); err != nil {
		return err
	}
	if ownerID != sess.UserID {
		return ErrForbidden
	}
	ok, err := realtime.Exists(ctx, s.store, fanout.TaskPath(ownerID, taskID))
	if err != nil {
		return fmt.Errorf("lookup task: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := s.writer.DeleteTask(ctx, ownerID, taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// GetTask returns the task stored at tasks/{ownerID}/{taskID}.
func (s *Service) GetTask(ctx context.Context, ownerID, taskID string) (models.Task, error) {
	if err := checkIDs("owner", ownerID, "id", taskID); err != nil {
		return models.Task{}, err
	}
	v, err := s.store.Get(ctx, fanout.TaskPath(ownerID, taskID))
	if errors.Is(err, realtime.ErrNotFound) {
		return models.Task{}, ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return models.DecodeTask(taskID, v), nil
}

// ListUserTasks returns the tasks owned by uid, newest first.
func (s *Service) ListUserTasks(ctx context.Context, uid string) ([]models.Task, error) {
	if err := checkIDs("id", uid); err != nil {
		return nil, err
	}
	children, err := realtime.Children(ctx, s.store, realtime.Join(models.TasksRef, uid))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]models.Task, 0, len(children))
	for id, v := range children {
		tasks = append(tasks, models.DecodeTask(id, v))
	}
	sortTasks(tasks)
	return tasks, nil
}

// ListTasks returns every task in category, newest first. An empty category
// or AllCategories disables the filter.
func (s *Service) ListTasks(ctx context.Context, category string) ([]models.Task, error) {
	category = strings.TrimSpace(category)
	if category != "" && category != AllCategories && !IsCategory(category) {
		var v validate.Collector
		v.Addf("category", "unknown category %q", category)
		return nil, v.Err()
	}

	owners, err := realtime.Children(ctx, s.store, models.TasksRef)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var tasks []models.Task
	for _, owned := range owners {
		records, _ := owned.(map[string]any)
		for id, v := range records {
			task := models.DecodeTask(id, v)
			if category == "" || category == AllCategories || task.Category == category {
				tasks = append(tasks, task)
			}
		}
	}
	sortTasks(tasks)
	return tasks, nil
}

// checkIDs takes field, id pairs and requires each id to be one store key.
func checkIDs(pairs ...string) error {
	var v validate.Collector
	for i := 0; i+1 < len(pairs); i += 2 {
		v.ID(pairs[i], pairs[i+1])
	}
	return v.Err()
}

func sortTasks(tasks []models.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreationDate.Equal(tasks[j].CreationDate) {
			return tasks[i].CreationDate.After(tasks[j].CreationDate)
		}
		return tasks[i].ID > tasks[j].ID
	})
}
