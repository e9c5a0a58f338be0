package obscheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type grafanaConfig struct {
	baseURL      string
	user         string
	password     string
	prometheusID int
	lokiID       int
	tempoID      int
}

// grafanaClient queries datasources through Grafana's proxy API.
type grafanaClient struct {
	cfg  grafanaConfig
	http *http.Client
}

func newGrafanaClient(cfg grafanaConfig) *grafanaClient {
	return &grafanaClient{cfg: cfg, http: &http.Client{Timeout: 20 * time.Second}}
}

func (g *grafanaClient) getJSON(ctx context.Context, datasource int, path string, query url.Values, out any) error {
	u, err := url.Parse(g.cfg.baseURL)
	if err != nil {
		return fmt.Errorf("parse grafana url: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/datasources/proxy/" + strconv.Itoa(datasource) + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.cfg.user, g.cfg.password)
	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("grafana %s: %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode grafana %s: %w", path, err)
	}
	return nil
}

type exemplarResponse struct {
	Data []struct {
		Exemplars []struct {
			Labels map[string]string `json:"labels"`
		} `json:"exemplars"`
	} `json:"data"`
}

func (g *grafanaClient) exemplarTraceID(ctx context.Context, metric string, from, to time.Time) (string, error) {
	var resp exemplarResponse
	q := url.Values{
		"query": {metric},
		"start": {strconv.FormatInt(from.Unix(), 10)},
		"end":   {strconv.FormatInt(to.Unix(), 10)},
	}
	if err := g.getJSON(ctx, g.cfg.prometheusID, "/api/v1/query_exemplars", q, &resp); err != nil {
		return "", err
	}
	for _, series := range resp.Data {
		for _, ex := range series.Exemplars {
			if id := ex.Labels["trace_id"]; len(id) == 32 {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("no trace_id exemplar found for %s", metric)
}

func (g *grafanaClient) traceExists(ctx context.Context, traceID string) error {
	var resp struct {
		Batches []json.RawMessage `json:"batches"`
	}
	if err := g.getJSON(ctx, g.cfg.tempoID, "/api/traces/"+traceID, nil, &resp); err != nil {
		return err
	}
	if len(resp.Batches) == 0 {
		return fmt.Errorf("tempo trace %s has no batches", traceID)
	}
	return nil
}

func (g *grafanaClient) logsMentionTrace(ctx context.Context, serviceName, traceID string, from, to time.Time) error {
	var resp struct {
		Data struct {
			Result []json.RawMessage `json:"result"`
		} `json:"data"`
	}
	q := url.Values{
		"query":     {fmt.Sprintf(`{service_name=%q} |= "trace_id=%s"`, serviceName, traceID)},
		"start":     {strconv.FormatInt(from.UnixNano(), 10)},
		"end":       {strconv.FormatInt(to.UnixNano(), 10)},
		"limit":     {"1"},
		"direction": {"backward"},
	}
	if err := g.getJSON(ctx, g.cfg.lokiID, "/loki/api/v1/query_range", q, &resp); err != nil {
		return err
	}
	if len(resp.Data.Result) == 0 {
		return fmt.Errorf("no correlated loki logs found for trace_id %s", traceID)
	}
	return nil
}
