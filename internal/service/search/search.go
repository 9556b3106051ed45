// Package search keeps the equipment index in Elasticsearch and serves the
// fleet search endpoint. Indexing is best-effort: the database is the source
// of truth and index failures never fail the originating request.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
)

const DefaultIndex = "equipment"

type Doc struct {
	ID          uint   `json:"id"`
	AdminUserID uint   `json:"admin_user_id"`
	Type        string `json:"type"`
	VIN         string `json:"vin"`
	Code        string `json:"code"`
	Make        string `json:"make"`
	Model       string `json:"model"`
}

func docFrom(eq *models.Equipment) Doc {
	return Doc{
		ID:          eq.ID,
		AdminUserID: eq.AdminUserID,
		Type:        eq.Type,
		VIN:         eq.VIN,
		Code:        eq.Code,
		Make:        eq.Make,
		Model:       eq.Model,
	}
}

func IndexEquipment(ctx context.Context, es *elasticsearch.Client, index string, eq *models.Equipment) error {
	body, err := json.Marshal(docFrom(eq))
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: strconv.FormatUint(uint64(eq.ID), 10),
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, es)
	if err != nil {
		return fmt.Errorf("index equipment: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index equipment: %s", res.Status())
	}
	return nil
}

func DeleteEquipment(ctx context.Context, es *elasticsearch.Client, index string, id uint) error {
	req := esapi.DeleteRequest{
		Index:      index,
		DocumentID: strconv.FormatUint(uint64(id), 10),
	}
	res, err := req.Do(ctx, es)
	if err != nil {
		return fmt.Errorf("delete equipment doc: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete equipment doc: %s", res.Status())
	}
	return nil
}

// Search runs a fuzzy multi_match over the caller's fleet only.
func Search(ctx context.Context, es *elasticsearch.Client, index, query string, userID uint, from, size int) (int64, []Doc, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":     query,
						"fields":    []string{"code^2", "vin^2", "make", "model", "type"},
						"fuzziness": "AUTO",
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"admin_user_id": userID},
				},
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, err
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
		es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Doc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, nil, fmt.Errorf("search decode: %w", err)
	}

	docs := make([]Doc, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return parsed.Hits.Total.Value, docs, nil
}

// Normalize trims and lowercases a user query before it reaches ES.
func Normalize(q string) string {
	return strings.TrimSpace(strings.ToLower(q))
}
