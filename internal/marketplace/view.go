package marketplace

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/juggle/internal/fanout"
	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/realtime"
)

// TaskView assembles a task, its owner and the owner's rating with
// concurrent point reads. A read that finds nothing yields a defaulted
// value; only store failures fail the view.
func (s *Service) TaskView(ctx context.Context, ownerID, taskID string) (TaskView, error) {
	if err := checkIDs("owner", ownerID, "id", taskID); err != nil {
		return TaskView{}, err
	}
	var view TaskView
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v, err := s.store.Get(gctx, fanout.TaskPath(ownerID, taskID))
		if errors.Is(err, realtime.ErrNotFound) {
			view.Task = models.DecodeTask(taskID, nil)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read task: %w", err)
		}
		view.Task = models.DecodeTask(taskID, v)
		view.TaskFound = true
		return nil
	})

	g.Go(func() error {
		user, found, err := s.GetUser(gctx, ownerID)
		if err != nil {
			return err
		}
		view.Owner, view.OwnerFound = user, found
		return nil
	})

	g.Go(func() error {
		reviews, err := s.ListReviews(gctx, ownerID)
		if err != nil {
			return err
		}
		view.Rating = summarizeReviews(ownerID, reviews)
		return nil
	})

	if err := g.Wait(); err != nil {
		return TaskView{}, err
	}
	return view, nil
}
