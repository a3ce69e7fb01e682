package changefeed

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskDocumentChanged = "changefeed.document.changed"

type DocumentChangedPayload struct {
	ChangeID   string `json:"changeId"`
	Collection string `json:"collection"`
}

func NewDocumentChangedTask(payload DocumentChangedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDocumentChanged, data), nil
}

func ParseDocumentChangedPayload(task *asynq.Task) (DocumentChangedPayload, error) {
	var payload DocumentChangedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DocumentChangedPayload{}, err
	}
	return payload, nil
}
