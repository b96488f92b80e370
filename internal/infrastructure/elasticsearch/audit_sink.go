// Package elasticsearch stores authentication audit events in an index.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ailens-auth/internal/application"
)

type AuditSink struct {
	ES     *elasticsearch.Client
	Index  string
	Logger *logrus.Logger
}

func NewAuditSink(es *elasticsearch.Client, index string, logger *logrus.Logger) *AuditSink {
	return &AuditSink{ES: es, Index: index, Logger: logger}
}

// Record indexes ev. Failures are logged and swallowed.
func (s *AuditSink) Record(ctx context.Context, ev application.AuditEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		s.Logger.WithError(err).WithField("type", ev.Type).Warn("audit marshal failed")
		return
	}
	req := esapi.IndexRequest{Index: s.Index, DocumentID: uuid.NewString(), Body: bytes.NewReader(b), Refresh: "false"}
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		s.Logger.WithError(err).WithField("type", ev.Type).Warn("audit index failed")
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		s.Logger.WithFields(logrus.Fields{"status": res.Status(), "type": ev.Type}).Warn("audit index response error")
	}
}

// Recent returns the latest events recorded for accountID.
func (s *AuditSink) Recent(ctx context.Context, accountID string, size int) ([]application.AuditEvent, error) {
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"term": map[string]any{"account_id.keyword": accountID},
		},
		"sort": []any{map[string]any{"@timestamp": map[string]any{"order": "desc"}}},
	}
	b, _ := json.Marshal(query)
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := s.ES.Search(
		s.ES.Search.WithContext(c),
		s.ES.Search.WithIndex(s.Index),
		s.ES.Search.WithBody(bytes.NewReader(b)),
		s.ES.Search.WithSize(size),
	)
	if err != nil {
		return nil, fmt.Errorf("audit search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("audit search: %s", res.Status())
	}

	var body struct {
		Hits struct {
			Hits []struct {
				Source application.AuditEvent `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("audit search decode: %w", err)
	}
	out := make([]application.AuditEvent, 0, len(body.Hits.Hits))
	for _, h := range body.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

var (
	_ application.AuditSink   = (*AuditSink)(nil)
	_ application.AuditReader = (*AuditSink)(nil)
)
