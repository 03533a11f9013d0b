// Package backend is the REST client of the conversation API.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-console/internal/apiclient"
	"github.com/capitalize-ai/support-console/internal/capability"
	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/pkg/logger"
	"github.com/capitalize-ai/support-console/pkg/metrics"
)

// StatusFilterCapability names the server-side status filter of the list
// endpoint.
const StatusFilterCapability = "conversation_status_filter"

// Client talks to the conversation API.
type Client struct {
	api          *apiclient.Client
	statusFilter *capability.Prober
	logger       *logger.Logger
}

// NewClient creates a backend client.
func NewClient(api *apiclient.Client, log *logger.Logger) *Client {
	c := &Client{api: api, logger: log}
	c.statusFilter = capability.NewProber(StatusFilterCapability, func(name string, f capability.Flag) {
		metrics.RecordCapability(name, f.String())
		log.Info("backend capability resolved", zap.String("capability", name), zap.String("state", f.String()))
	})
	return c
}

// StatusFilter returns the state of the status-filter capability.
func (c *Client) StatusFilter() capability.Flag {
	return c.statusFilter.State()
}

// ListConversations handles GET /api/conversations. A status filter is sent
// to the server only while the server is not known to reject it; otherwise
// the unfiltered list is filtered here.
func (c *Client) ListConversations(ctx context.Context, filter model.StatusFilter) ([]model.Conversation, error) {
	if filter == model.FilterAll {
		return c.list(ctx, "")
	}

	// Pending is derived: ask for open conversations and narrow locally.
	serverStatus := string(filter)
	if filter == model.FilterPending {
		serverStatus = string(model.FilterOpen)
	}

	list, applied, err := capability.Do(ctx, c.statusFilter,
		func(ctx context.Context) ([]model.Conversation, error) { return c.list(ctx, serverStatus) },
		func(ctx context.Context) ([]model.Conversation, error) { return c.list(ctx, "") },
	)
	if err != nil {
		return nil, err
	}
	if applied && filter != model.FilterPending {
		return list, nil
	}
	return filterConversations(list, filter), nil
}

func (c *Client) list(ctx context.Context, status string) ([]model.Conversation, error) {
	var query url.Values
	if status != "" {
		query = url.Values{"status": {status}}
	}
	list, err := apiclient.Do[[]model.Conversation](ctx, c.api, http.MethodGet, "/api/conversations", query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return list, nil
}

func filterConversations(list []model.Conversation, filter model.StatusFilter) []model.Conversation {
	out := make([]model.Conversation, 0, len(list))
	for i := range list {
		if list[i].Matches(filter) {
			out = append(out, list[i])
		}
	}
	return out
}

// GetConversation handles GET /api/conversations/{id}.
func (c *Client) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := apiclient.Do[*model.Conversation](ctx, c.api, http.MethodGet, "/api/conversations/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conv != nil && conv.ID == "" {
		conv.ID = id
	}
	return conv, nil
}

// GetMessages handles GET /api/conversations/{id}/messages.
func (c *Client) GetMessages(ctx context.Context, id string) ([]model.Message, error) {
	msgs, err := apiclient.Do[[]model.Message](ctx, c.api, http.MethodGet,
		"/api/conversations/"+url.PathEscape(id)+"/messages", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return msgs, nil
}

type assignRequest struct {
	AgentID   string `json:"agentId"`
	AgentName string `json:"agentName"`
}

// AssignAgent handles PUT /api/conversations/{id}/assign.
func (c *Client) AssignAgent(ctx context.Context, id string, agent model.Agent) (*model.Conversation, error) {
	conv, err := apiclient.Do[*model.Conversation](ctx, c.api, http.MethodPut,
		"/api/conversations/"+url.PathEscape(id)+"/assign", nil, assignRequest{AgentID: agent.ID, AgentName: agent.Name})
	if err != nil {
		return nil, fmt.Errorf("failed to assign conversation: %w", err)
	}
	return conv, nil
}
