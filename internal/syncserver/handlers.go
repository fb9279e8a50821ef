package syncserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/opentask/taskin/internal/lifecycle"
	"github.com/opentask/taskin/internal/syncproto"
	"github.com/opentask/taskin/internal/task"
)

// transitions maps lifecycle message types to manager actions.
var transitions = map[syncproto.Type]string{
	syncproto.TypeStart:  lifecycle.ActionStart,
	syncproto.TypeFinish: lifecycle.ActionFinish,
	syncproto.TypePause:  lifecycle.ActionPause,
}

func (s *Server) sendInitial(ctx context.Context, c *client) {
	tasks, err := s.store.GetAllTasks(ctx)
	if err != nil {
		s.sendError(c, "", fmt.Sprintf("failed to load tasks: %v", err))
		return
	}
	s.reply(c, syncproto.TypeTasks, nonNil(tasks), "")
}

// handleMessage processes one inbound frame. Every failure is answered
// with an error message to the sender; the connection stays open.
func (s *Server) handleMessage(ctx context.Context, c *client, data []byte) {
	msg, err := syncproto.Parse(data)
	if err != nil {
		s.sendError(c, "", err.Error())
		return
	}
	s.logger.Debug("message received", "id", c.id, "type", msg.Type)

	if err := s.dispatch(ctx, c, msg); err != nil {
		s.logger.Debug("request failed", "id", c.id, "type", msg.Type, "err", err)
		s.sendError(c, msg.RequestID, err.Error())
	}
}

func (s *Server) dispatch(ctx context.Context, c *client, msg syncproto.Message) error {
	switch msg.Type {
	case syncproto.TypeList:
		tasks, err := s.store.GetAllTasks(ctx)
		if err != nil {
			return err
		}
		s.reply(c, syncproto.TypeTasks, nonNil(tasks), msg.RequestID)

	case syncproto.TypeFind:
		id, err := msg.TaskID()
		if err != nil {
			return err
		}
		t, err := s.store.FindTask(ctx, id)
		switch {
		case errors.Is(err, task.ErrNotFound):
			s.reply(c, syncproto.TypeTaskFound, json.RawMessage("null"), msg.RequestID)
		case err != nil:
			return err
		default:
			s.reply(c, syncproto.TypeTaskFound, t, msg.RequestID)
		}

	case syncproto.TypeUpdate:
		t, err := msg.Task()
		if err != nil {
			return err
		}
		if err := s.store.UpdateTask(ctx, t); err != nil {
			return err
		}
		s.broadcastMessage(syncproto.TypeTaskUpdated, t, msg.RequestID)

	case syncproto.TypeStart, syncproto.TypeFinish, syncproto.TypePause:
		id, err := msg.TaskID()
		if err != nil {
			return err
		}
		t, err := s.manager.Do(ctx, transitions[msg.Type], id)
		if err != nil {
			return err
		}
		s.broadcastMessage(syncproto.TypeTaskUpdated, t, msg.RequestID)

	case syncproto.TypePing:
		s.reply(c, syncproto.TypePong, nil, msg.RequestID)

	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
	return nil
}

func nonNil(tasks []task.Task) []task.Task {
	if tasks == nil {
		return []task.Task{}
	}
	return tasks
}

func (s *Server) encode(t syncproto.Type, payload any, requestID string) ([]byte, error) {
	msg, err := syncproto.New(t, payload, requestID)
	if err != nil {
		return nil, err
	}
	return msg.Encode(timeNow().UnixMilli())
}

// reply sends a message to one client.
func (s *Server) reply(c *client, t syncproto.Type, payload any, requestID string) {
	frame, err := s.encode(t, payload, requestID)
	if err != nil {
		s.logger.Error("encoding reply failed", "type", t, "err", err)
		return
	}
	if !c.enqueue(frame) {
		s.drop(c)
	}
}

func (s *Server) sendError(c *client, requestID, message string) {
	s.reply(c, syncproto.TypeError, syncproto.ErrorPayload{Message: message}, requestID)
}

// Broadcast sends a message to every registered client, sender included.
func (s *Server) Broadcast(t syncproto.Type, payload any) error {
	frame, err := s.encode(t, payload, "")
	if err != nil {
		return err
	}
	s.broadcast(frame)
	return nil
}

func (s *Server) broadcastMessage(t syncproto.Type, payload any, requestID string) {
	frame, err := s.encode(t, payload, requestID)
	if err != nil {
		s.logger.Error("encoding broadcast failed", "type", t, "err", err)
		return
	}
	s.broadcast(frame)
}

// broadcast queues frame on every client while holding the registry lock,
// so concurrent broadcasts reach all clients in the same order.
func (s *Server) broadcast(frame []byte) {
	var slow []*client
	s.mu.Lock()
	for _, c := range s.clients {
		if !c.enqueue(frame) {
			slow = append(slow, c)
		}
	}
	n := len(s.clients)
	s.mu.Unlock()

	for _, c := range slow {
		s.drop(c)
	}
	s.logger.Debug("broadcast", "clients", n, "dropped", len(slow))
}

// drop removes a client whose queue overflowed.
func (s *Server) drop(c *client) {
	s.mu.Lock()
	_, registered := s.clients[c.id]
	delete(s.clients, c.id)
	s.mu.Unlock()
	if registered {
		s.logger.Warn("dropping slow client", "id", c.id)
	}
	c.close(websocket.CloseTryAgainLater, "send queue full")
	_ = c.conn.Close()
}
