package api

import (
	"net/http"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/supermq"
)

var (
	_ supermq.Response = (*statusResponse)(nil)
	_ supermq.Response = (*roundResponse)(nil)
	_ supermq.Response = (*listRoundsResponse)(nil)
	_ supermq.Response = (*modelResponse)(nil)
	_ supermq.Response = (*listSessionsResponse)(nil)
)

type statusResponse struct {
	coordinator.RunStatus
}

func (s statusResponse) Code() int {
	return http.StatusOK
}

func (s statusResponse) Headers() map[string]string {
	return map[string]string{}
}

func (s statusResponse) Empty() bool {
	return false
}

type roundResponse struct {
	fl.RoundRecord
	ParticipantCount int `json:"participant_count"`
}

func (r roundResponse) Code() int {
	return http.StatusOK
}

func (r roundResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r roundResponse) Empty() bool {
	return false
}

type listRoundsResponse struct {
	coordinator.RoundPage
}

func (l listRoundsResponse) Code() int {
	return http.StatusOK
}

func (l listRoundsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listRoundsResponse) Empty() bool {
	return false
}

type modelResponse struct {
	fl.GlobalModel
	Dimension int `json:"dimension"`
}

func (m modelResponse) Code() int {
	return http.StatusOK
}

func (m modelResponse) Headers() map[string]string {
	return map[string]string{}
}

func (m modelResponse) Empty() bool {
	return false
}

type listSessionsResponse struct {
	Total    int                       `json:"total"`
	Sessions []coordinator.SessionInfo `json:"sessions"`
}

func (l listSessionsResponse) Code() int {
	return http.StatusOK
}

func (l listSessionsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listSessionsResponse) Empty() bool {
	return false
}
