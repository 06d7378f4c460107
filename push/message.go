package push

import (
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/go-task-client/internal/errors"
	"github.com/jrsteele09/go-task-client/tasks"
)

// ErrUnknownType is returned by Decode for a well-formed message whose type
// discriminator is not recognised. Such messages are ignored, not treated as
// decode failures.
var ErrUnknownType = errors.New("unknown message type")

// Message is one decoded push notification: TaskCreated, TaskUpdated or TaskDeleted.
type Message interface {
	isMessage()
}

type TaskCreated struct {
	Task tasks.Task
}

type TaskUpdated struct {
	Task tasks.Task
}

type TaskDeleted struct {
	TaskID tasks.ID
}

func (TaskCreated) isMessage() {}
func (TaskUpdated) isMessage() {}
func (TaskDeleted) isMessage() {}

// Wire type discriminators. The dotted forms are what the deployed backend sends.
const (
	TypeTaskCreated = "task-created"
	TypeTaskUpdated = "task-updated"
	TypeTaskDeleted = "task-deleted"
)

var typeAliases = map[string]string{
	TypeTaskCreated: TypeTaskCreated,
	"task.create":   TypeTaskCreated,
	"task.created":  TypeTaskCreated,
	TypeTaskUpdated: TypeTaskUpdated,
	"task.update":   TypeTaskUpdated,
	"task.updated":  TypeTaskUpdated,
	TypeTaskDeleted: TypeTaskDeleted,
	"task.delete":   TypeTaskDeleted,
	"task.deleted":  TypeTaskDeleted,
}

type envelope struct {
	Type   string          `json:"type"`
	Task   json.RawMessage `json:"task"`
	TaskID *tasks.ID       `json:"task_id"`
}

// Decode parses one push frame. Malformed frames fail with errors.ErrDecode.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDecode, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", errors.ErrDecode)
	}

	kind, ok := typeAliases[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	switch kind {
	case TypeTaskCreated:
		task, err := decodeTask(env.Task)
		if err != nil {
			return nil, err
		}
		return TaskCreated{Task: task}, nil
	case TypeTaskUpdated:
		task, err := decodeTask(env.Task)
		if err != nil {
			return nil, err
		}
		return TaskUpdated{Task: task}, nil
	default:
		if env.TaskID != nil && *env.TaskID != "" {
			return TaskDeleted{TaskID: *env.TaskID}, nil
		}
		// Some senders put the whole task on a delete.
		if task, err := decodeTask(env.Task); err == nil {
			return TaskDeleted{TaskID: task.ID}, nil
		}
		return nil, fmt.Errorf("%w: %s without task_id", errors.ErrDecode, env.Type)
	}
}

func decodeTask(raw json.RawMessage) (tasks.Task, error) {
	var task tasks.Task
	if len(raw) == 0 || string(raw) == "null" {
		return task, fmt.Errorf("%w: missing task payload", errors.ErrDecode)
	}
	if err := json.Unmarshal(raw, &task); err != nil {
		return task, fmt.Errorf("%w: task payload: %v", errors.ErrDecode, err)
	}
	if task.ID == "" {
		return task, fmt.Errorf("%w: task payload without id", errors.ErrDecode)
	}
	return task, nil
}

// Sink receives decoded messages. *tasks.Store satisfies it.
type Sink interface {
	ApplyExternalInsert(task tasks.Task)
	ApplyExternalReplace(task tasks.Task)
	ApplyExternalRemove(id tasks.ID)
}

var _ Sink = (*tasks.Store)(nil)

// Apply routes msg to the matching sink primitive.
func Apply(sink Sink, msg Message) {
	switch m := msg.(type) {
	case TaskCreated:
		sink.ApplyExternalInsert(m.Task)
	case TaskUpdated:
		sink.ApplyExternalReplace(m.Task)
	case TaskDeleted:
		sink.ApplyExternalRemove(m.TaskID)
	}
}
