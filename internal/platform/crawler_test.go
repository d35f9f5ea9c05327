package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2g-data/bidscan/internal/entity"
)

type memStore struct {
	objects map[string][]byte
}

func (m *memStore) Get(_ context.Context, _, key string) ([]byte, error) {
	return m.objects[key], nil
}

func (m *memStore) Put(_ context.Context, _, key string, data []byte) error {
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return nil
}

type memDocs struct {
	stored   map[string]struct{} // crimson ids with a document tree
	upserts  []entity.ProjectDocuments
	inserted []entity.BidDocument
}

func (m *memDocs) FetchBatch(context.Context, int, int) ([]entity.BidDocument, error) {
	return nil, nil
}

func (m *memDocs) Insert(_ context.Context, d entity.BidDocument) error {
	m.inserted = append(m.inserted, d)
	return nil
}

func (m *memDocs) IncrementRetry(context.Context, int64, string) error { return nil }

func (m *memDocs) UpsertProjectDocuments(_ context.Context, pd entity.ProjectDocuments) error {
	m.upserts = append(m.upserts, pd)
	return nil
}

func (m *memDocs) MissingCrimsonIDs(_ context.Context, candidates []string) ([]string, error) {
	var missing []string
	for _, id := range candidates {
		if _, ok := m.stored[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func newCrawlServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"gcipApiKey": "k"})
	})
	mux.HandleFunc("/v1/accounts:signInWithPassword", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"idToken": "tok", "refreshToken": "r"})
	})
	mux.HandleFunc("/api/csrf", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"csrf": "c"})
	})
	mux.HandleFunc("/api/agent/searchAPI/projectLeadsElastic", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"numFound": 2,
			"docs": []map[string]any{
				{"uniqueProjectId": "cur-9001", "matchedDocumentCount": 5},
				{"id": "9002", "matchedDocumentCount": 3}, // already stored
			},
		})
	})
	mux.HandleFunc("/api/agent/project/initProjectInformation", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"ProjectId": 555, "ProjectName": "Water Treatment Expansion"},
		})
	})
	mux.HandleFunc("/api/agent/document/getProjectDocumentList", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"DocumentType": "Specs",
				"Children": []map[string]any{
					{"DocumentId": "301", "DisplayName": "Division 40"},
				},
			},
		})
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("%PDF-1.7 fake content"))
	})
	return httptest.NewServer(mux)
}

func TestCrawlIngestsNewProjects(t *testing.T) {
	srv := newCrawlServer(t)
	defer srv.Close()

	auth := newTestAuth(t, srv, "")
	client := NewClient(auth, srv.URL, testLogger())
	store := &memStore{}
	downloader := NewDownloader(auth, store, "bid-docs-h2g", "all/", srv.URL+"/download", testLogger())
	docs := &memDocs{stored: map[string]struct{}{"9002": {}}}

	crawler := NewCrawler(client, downloader, docs, testLogger())
	crawler.sleep = func(context.Context, time.Duration) error { return nil }

	totals, err := crawler.Crawl(context.Background(), []string{"vibration monitoring"}, 2)

	require.NoError(t, err)
	assert.Equal(t, 2, totals.ProjectsSeen)
	assert.Equal(t, 1, totals.ProjectsStored, "stored project must be skipped")
	assert.Equal(t, 1, totals.Downloaded)
	assert.Zero(t, totals.Failed)

	require.Len(t, docs.upserts, 1)
	assert.Equal(t, "555", docs.upserts[0].ProjectID)
	assert.Equal(t, "9001", docs.upserts[0].CrimsonID)
	assert.NotNil(t, docs.upserts[0].Specs)

	require.Len(t, docs.inserted, 1)
	ins := docs.inserted[0]
	assert.Equal(t, int64(555), ins.ProjectID)
	assert.Equal(t, "Specs", ins.DocumentType)
	assert.Equal(t, "301", ins.DocumentID)
	assert.True(t, strings.HasPrefix(ins.S3Path, "s3://bid-docs-h2g/all/301_"), "got %s", ins.S3Path)

	require.Len(t, store.objects, 1)
	for _, data := range store.objects {
		assert.True(t, strings.HasPrefix(string(data), "%PDF"))
	}
}

func TestCrawlRecordsFailedDownloadsAsNA(t *testing.T) {
	srv := newCrawlServer(t)
	defer srv.Close()

	auth := newTestAuth(t, srv, "")
	client := NewClient(auth, srv.URL, testLogger())
	store := &memStore{}
	// Point the downloader at a path that returns 404.
	downloader := NewDownloader(auth, store, "b", "all/", srv.URL+"/missing", testLogger())
	docs := &memDocs{}

	crawler := NewCrawler(client, downloader, docs, testLogger())
	crawler.sleep = func(context.Context, time.Duration) error { return nil }

	totals, err := crawler.Crawl(context.Background(), []string{"piezometer"}, 2)

	require.NoError(t, err)
	assert.Zero(t, totals.Downloaded)
	require.NotEmpty(t, docs.inserted)
	assert.Equal(t, "NA", docs.inserted[0].S3Path)
}
