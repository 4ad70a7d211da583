package attendance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/sekolahmbg/mbg-client/api"
	"github.com/sekolahmbg/mbg-client/core"
	"github.com/sekolahmbg/mbg-client/core/netmode"
	"github.com/sekolahmbg/mbg-client/core/offline"
	"github.com/sekolahmbg/mbg-client/core/session"
	"github.com/sekolahmbg/mbg-client/services/netcheck"
	"github.com/sekolahmbg/mbg-client/storage/kv"
	testutil "github.com/sekolahmbg/mbg-client/tests"
)

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}

func newService(t *testing.T, handler http.Handler, online bool) (*Service, *offline.Queue) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := kv.NewMemStore()
	sessions := session.NewStore(store, "test_session", nil)
	testutil.Login(t, sessions, core.RoleAdminSekolah)

	conf := testutil.TestConfig()
	conf.CloudBaseURL = srv.URL
	resolver := netmode.NewResolver(store, conf)
	client := api.NewClient(conf, sessions, resolver, kv.NewSecretStore(store, t.TempDir(), nil), nil)

	queue := offline.NewQueue(store)
	engine := offline.NewEngine(queue, client, netcheck.Static(online), nil)
	return NewService(client, engine, newValidator(t)), queue
}

func validRecord() Record {
	return Record{
		SchoolID: "sch-1",
		Date:     "2026-08-31",
		Entries: []Entry{
			{StudentID: "stu-1", Status: StatusHadir},
			{StudentID: "stu-2", Status: StatusSakit, Note: "demam"},
		},
	}
}

func Test_Record_online(t *testing.T) {
	var hits int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/attendance", func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})
	svc, queue := newService(t, mux, true)

	queued, err := svc.Record(context.Background(), validRecord())
	assert.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 0, queue.Len())
}

func Test_Record_offlineQueues(t *testing.T) {
	var hits int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/attendance", func(w http.ResponseWriter, r *http.Request) { hits++ })
	svc, queue := newService(t, mux, false)

	queued, err := svc.Record(context.Background(), validRecord())
	assert.NoError(t, err)
	assert.True(t, queued)
	assert.Equal(t, 0, hits, "offline submissions must not touch the network")

	items := queue.All()
	if assert.Len(t, items, 1) {
		assert.Equal(t, QueueType, items[0].Type)
		assert.JSONEq(t, `{
			"school_id":"sch-1","date":"2026-08-31",
			"entries":[
				{"student_id":"stu-1","status":"hadir"},
				{"student_id":"stu-2","status":"sakit","note":"demam"}
			]}`, string(items[0].Payload))
	}
}

func Test_Record_serverErrorQueues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/attendance", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	svc, queue := newService(t, mux, true)

	queued, err := svc.Record(context.Background(), validRecord())
	assert.NoError(t, err)
	assert.True(t, queued, "a failed live submit must fall back to the queue")
	assert.Equal(t, 1, queue.Len())
}

func Test_Record_validation(t *testing.T) {
	svc, queue := newService(t, http.NewServeMux(), true)
	ctx := context.Background()

	cases := []struct {
		name string
		mod  func(*Record)
	}{
		{"missing school", func(r *Record) { r.SchoolID = "" }},
		{"bad date", func(r *Record) { r.Date = "31/08/2026" }},
		{"no entries", func(r *Record) { r.Entries = nil }},
		{"entry missing student", func(r *Record) { r.Entries[0].StudentID = "" }},
		{"unknown status", func(r *Record) { r.Entries[0].Status = "mangkir" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRecord()
			tc.mod(&rec)
			queued, err := svc.Record(ctx, rec)
			assert.Error(t, err)
			assert.False(t, queued)
		})
	}
	assert.Equal(t, 0, queue.Len(), "invalid records must never be queued")
}

func Test_Students(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/schools/sch-1/students", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"stu-1","full_name":"Budi Santoso","class":"5A"}]`))
	})
	svc, _ := newService(t, mux, true)

	students, err := svc.Students(context.Background(), "sch-1")
	assert.NoError(t, err)
	if assert.Len(t, students, 1) {
		assert.Equal(t, Student{ID: "stu-1", FullName: "Budi Santoso", Class: "5A"}, students[0])
	}
}

func Test_Summary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/attendance/summary", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sch-1", r.URL.Query().Get("school_id"))
		assert.Equal(t, "2026-08-31", r.URL.Query().Get("date"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"school_id":"sch-1","date":"2026-08-31","present":21,"total":25}`))
	})
	svc, _ := newService(t, mux, true)

	sum, err := svc.Summary(context.Background(), "sch-1", "2026-08-31")
	assert.NoError(t, err)
	assert.Equal(t, 21, sum.Present)
	assert.Equal(t, 25, sum.Total)
}
