package service

import (
	"context"
	"fmt"
	"time"

	"tasklane/internal/common"
	"tasklane/internal/domain/model"
	"tasklane/internal/domain/repository"

	"github.com/google/uuid"
)

type TaskService struct {
	taskRepo repository.TaskRepository
}

func NewTaskService(taskRepo repository.TaskRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo}
}

type CreateTaskRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
}

func (s *TaskService) Create(ctx context.Context, ownerID string, req CreateTaskRequest) (*model.Task, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("title is required: %w", common.ErrValidation)
	}
	if !req.DueDate.After(time.Now()) {
		return nil, fmt.Errorf("due date must be in the future: %w", common.ErrValidation)
	}

	task := &model.Task{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Completed:   false,
		OwnerID:     ownerID,
		CreatedAt:   time.Now(),
	}
	if err := s.taskRepo.Insert(ctx, nil, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

func (s *TaskService) List(ctx context.Context, ownerID string, completed *bool) ([]model.Task, error) {
	tasks, err := s.taskRepo.ListByOwner(ctx, ownerID, completed)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) Complete(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	if _, err := s.ownedTask(ctx, ownerID, taskID); err != nil {
		return nil, err
	}
	completed := true
	task, err := s.taskRepo.Update(ctx, taskID, model.TaskPatch{Completed: &completed})
	if err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	if _, err := s.ownedTask(ctx, ownerID, taskID); err != nil {
		return nil, err
	}
	if patch.Title != nil && *patch.Title == "" {
		return nil, fmt.Errorf("title cannot be empty: %w", common.ErrValidation)
	}
	// Interactive edits keep the future-due-date rule; bulk import does not.
	if patch.DueDate != nil && !patch.DueDate.After(time.Now()) {
		return nil, fmt.Errorf("due date must be in the future: %w", common.ErrValidation)
	}
	task, err := s.taskRepo.Update(ctx, taskID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, ownerID, taskID string) error {
	if _, err := s.ownedTask(ctx, ownerID, taskID); err != nil {
		return err
	}
	removed, err := s.taskRepo.Delete(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if !removed {
		return fmt.Errorf("task not found: %w", common.ErrNotFound)
	}
	return nil
}

// ownedTask resolves a task and enforces the ownership boundary. A task
// owned by someone else is reported exactly like a missing one.
func (s *TaskService) ownedTask(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", common.ErrNotFound)
	}
	if task.OwnerID != ownerID {
		return nil, fmt.Errorf("task not found: %w", common.ErrNotFound)
	}
	return task, nil
}
