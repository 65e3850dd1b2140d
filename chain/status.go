package chain

import (
	"sync"
)

// StatusInfo is the chain state shown by the UI
type StatusInfo struct {
	Network    string `json:"network"`
	Endpoint   string `json:"endpoint"`
	ActiveEra  uint32 `json:"activeEra"`
	Account    string `json:"account"`
	Nominating bool   `json:"nominating"`
	ErrorMsg   string `json:"error"`
}

// Status is updated by the era watcher and read by the web UI
type Status struct {
	info StatusInfo
	lock sync.RWMutex
}

func NewStatus(network string) *Status {
	return &Status{info: StatusInfo{Network: network}}
}

func (s *Status) SetEra(era uint32, endpoint string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.info.ActiveEra = era
	s.info.Endpoint = endpoint
}

func (s *Status) SetNominating(account string, nominating bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.info.Account = account
	s.info.Nominating = nominating
}

func (s *Status) SetError(e error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.info.ErrorMsg = e.Error()
}

func (s *Status) ClearError() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.info.ErrorMsg = ""
}

func (s *Status) Snapshot() StatusInfo {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.info
}
