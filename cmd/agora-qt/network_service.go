package main

import (
	"context"
)

// NetworkService exposes indexer connection control to the frontend.
type NetworkService struct {
	app *App
}

// ConnectionInfo describes the indexer link.
type ConnectionInfo struct {
	State     string `json:"state"`
	Endpoint  string `json:"endpoint"`
	TipHeight uint64 `json:"tip_height,omitempty"`
}

// Connect starts the connect cycle. Progress arrives on the
// "connection:state" event.
func (n *NetworkService) Connect() error {
	s, err := n.app.currentSession()
	if err != nil {
		return err
	}
	s.Connect()
	return nil
}

// CancelConnect aborts an in-flight connect cycle.
func (n *NetworkService) CancelConnect() error {
	s, err := n.app.currentSession()
	if err != nil {
		return err
	}
	s.CancelConnect()
	return nil
}

// GetConnectionInfo returns the current connection state and, when
// connected, the chain tip.
func (n *NetworkService) GetConnectionInfo() (*ConnectionInfo, error) {
	s, err := n.app.currentSession()
	if err != nil {
		return nil, err
	}
	info := &ConnectionInfo{
		State:    s.ConnState().String(),
		Endpoint: n.app.GetIndexerEndpoint(),
	}
	if tip, err := s.Tip(context.Background()); err == nil {
		info.TipHeight = tip.Height
	}
	return info, nil
}
