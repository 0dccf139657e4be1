package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap/zaptest"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
	logsvc "github.com/trezcool/masomo-attendance/services/logger"
	"github.com/trezcool/masomo-attendance/storage/cache"
	inmemdb "github.com/trezcool/masomo-attendance/storage/database/inmem"
	"github.com/trezcool/masomo-attendance/testutil"
)

var (
	monday   = core.NewDate(2024, time.March, 4)
	callTime = time.Date(2024, time.March, 4, 6, 45, 10, 0, time.UTC)

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

const secretKey = "test-secret"

type testApp struct {
	server *Server
	conf   *core.Config
	school testutil.School
	rec    attendance.Recorder
	redis  *miniredis.Miniredis
}

type setupOption func(deps *ServerDeps)

func setup(t *testing.T, opts ...setupOption) testApp {
	t.Helper()

	// set up DB & repos
	db := inmemdb.Open()
	school := testutil.SeedSchool(db)
	repo := inmemdb.NewAttendanceRepository(db)
	roster := inmemdb.NewRosterRepository(db)
	testutil.FixedNow(t, callTime)

	// set up services
	conf := &core.Config{AppName: "Masomo", SecretKey: secretKey, TestMode: true}
	conf.Server.JWTExpirationDelta = time.Hour
	validate, translator := testutil.NewValidator()
	rec := attendance.NewRecorder(repo, roster, validate, translator, attendance.Options{})
	agg := attendance.NewAggregator(repo, roster, attendance.Options{})

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	deps := ServerDeps{
		Conf:       conf,
		Logger:     logsvc.WrapZap(zaptest.NewLogger(t)),
		Recorder:   rec,
		Aggregator: agg,
		Cache:      cache.NewRedisCache(client, time.Minute),
		Validate:   validate,
		Translator: translator,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	// set up server
	return testApp{server: NewServer(deps), conf: conf, school: school, rec: rec, redis: srv}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (app testApp) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.server.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, tenantID string, roles ...string) string {
	t.Helper()
	claims := NewClaims(core.Actor{ID: testutil.Teacher, TenantID: tenantID, Username: "teacher"}, roles, conf)
	token, err := GenerateToken(claims, conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
