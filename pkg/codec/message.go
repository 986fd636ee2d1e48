package codec

import "github.com/absmach/fedavg/pkg/fl"

type MessageType string

const (
	Register   MessageType = "register"
	Registered MessageType = "registered"
	Rejected   MessageType = "rejected"
	Train      MessageType = "start_training"
	Update     MessageType = "weights"
	Evaluate   MessageType = "evaluate"
	Evaluation MessageType = "evaluation"
	Done       MessageType = "done"
	Ping       MessageType = "ping"
	Pong       MessageType = "pong"
)

// Message is the single envelope exchanged between coordinator and participants.
// Which fields are set depends on Type.
type Message struct {
	Type          MessageType     `json:"type"                     cbor:"type"`
	ParticipantID string          `json:"participant_id,omitempty" cbor:"participant_id,omitempty"`
	Round         int             `json:"round"                    cbor:"round"`
	Parameters    []float64       `json:"parameters,omitempty"     cbor:"parameters,omitempty"`
	Update        *fl.ModelUpdate `json:"update,omitempty"         cbor:"update,omitempty"`
	Evaluation    *fl.Evaluation  `json:"evaluation,omitempty"     cbor:"evaluation,omitempty"`
	Info          *Info           `json:"info,omitempty"           cbor:"info,omitempty"`
	Reason        string          `json:"reason,omitempty"         cbor:"reason,omitempty"`
}

// Info is the informational metadata a participant presents at registration.
type Info struct {
	Samples   int `json:"n_samples"   cbor:"n_samples"`
	Dimension int `json:"n_dimension" cbor:"n_dimension"`
}

func NewRegister(id string, info Info) Message {
	return Message{Type: Register, ParticipantID: id, Info: &info}
}

func NewTrain(model fl.GlobalModel) Message {
	return Message{Type: Train, Round: model.Round, Parameters: model.Parameters}
}

func NewEvaluate(model fl.GlobalModel) Message {
	return Message{Type: Evaluate, Round: model.Round, Parameters: model.Parameters}
}

func NewDone(model fl.GlobalModel) Message {
	return Message{Type: Done, Round: model.Round, Parameters: model.Parameters}
}

func NewUpdate(u fl.ModelUpdate) Message {
	return Message{Type: Update, ParticipantID: u.ParticipantID, Round: u.Round, Update: &u}
}

func NewEvaluation(e fl.Evaluation) Message {
	return Message{Type: Evaluation, ParticipantID: e.ParticipantID, Round: e.Round, Evaluation: &e}
}

func NewRejected(reason string) Message {
	return Message{Type: Rejected, Reason: reason}
}

// Model returns the global model carried by train, evaluate and done messages.
func (m Message) Model() fl.GlobalModel {
	return fl.GlobalModel{Round: m.Round, Parameters: m.Parameters}
}
