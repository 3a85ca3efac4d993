// Package tasks manages the local task list. The list is stored as one
// ordered collection under the settings store's "tasks" key and mutated via
// synchronous read-modify-write; the mutex keeps it single-writer.
package tasks

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ampdesk/amp/internal/store"
)

// Store manages the task collection.
type Store struct {
	kv *store.Store
	mu sync.Mutex
}

// NewStore creates a task store backed by the given settings store.
func NewStore(kv *store.Store) *Store {
	return &Store{kv: kv}
}

func (s *Store) load() ([]Task, error) {
	var list []Task
	if _, err := s.kv.GetJSON(store.KeyTasks, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []Task{}
	}
	return list, nil
}

func (s *Store) save(list []Task) error {
	return s.kv.SetJSON(store.KeyTasks, list)
}

// fill assigns defaults for a task about to be inserted.
func fill(task *Task) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Source == "" {
		task.Source = SourceManual
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
}

// Add inserts a task at the front of the list (newest first).
func (s *Store) Add(task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return err
	}

	fill(task)
	list = append([]Task{*task}, list...)
	return s.save(list)
}

// Append inserts a task at the end of the list. Used by the inbound poller
// so queued items keep their arrival order.
func (s *Store) Append(task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return err
	}

	fill(task)
	list = append(list, *task)
	return s.save(list)
}

// List returns a copy of the full task collection.
func (s *Store) List() ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns a task by ID, or nil if not found.
func (s *Store) Get(id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == id {
			t := list[i]
			return &t, nil
		}
	}
	return nil, nil
}

// Update applies a partial mutation to a task and refreshes its UpdatedAt.
func (s *Store) Update(id string, update Update) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return nil, err
	}

	for i := range list {
		if list[i].ID != id {
			continue
		}

		task := &list[i]
		if update.Title != nil {
			task.Title = *update.Title
		}
		if update.Completed != nil {
			task.Completed = *update.Completed
		}
		if update.DueDate != nil {
			task.DueDate = update.DueDate
		}
		if update.Deadline != nil {
			task.Deadline = update.Deadline
		}
		if update.Priority != nil {
			task.Priority = *update.Priority
		}
		if update.Context != nil {
			task.Context = *update.Context
		}
		if update.Description != nil {
			task.Description = *update.Description
		}
		if update.Tags != nil {
			task.Tags = *update.Tags
		}
		if update.LinkedItems != nil {
			task.LinkedItems = *update.LinkedItems
		}
		task.UpdatedAt = time.Now()

		if err := s.save(list); err != nil {
			return nil, err
		}
		result := *task
		return &result, nil
	}

	return nil, fmt.Errorf("task not found: %s", id)
}

// Complete marks a task as completed.
func (s *Store) Complete(id string) (*Task, error) {
	completed := true
	return s.Update(id, Update{Completed: &completed})
}

// Delete removes a task from the collection.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return err
	}

	for i := range list {
		if list[i].ID == id {
			list = append(list[:i], list[i+1:]...)
			return s.save(list)
		}
	}
	return fmt.Errorf("task not found: %s", id)
}
