package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/nkkko/pushreg/internal/clock"
	"github.com/nkkko/pushreg/internal/deletion"
	"github.com/nkkko/pushreg/internal/domain"
	"github.com/nkkko/pushreg/internal/registry"
	"github.com/nkkko/pushreg/internal/storage/memory"
	"github.com/nkkko/pushreg/pkg/proto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func setupTestAPI(t *testing.T) (*ChiAPI, *clock.Fake) {
	t.Helper()

	clk := clock.NewFake(testNow)
	reg, err := registry.New(registry.DefaultConfig(), memory.NewStore(), clk)
	require.NoError(t, err)

	runner := deletion.NewRunner(deletion.NewPushSubscriptionStep(reg, 10))
	return NewChiAPI(DefaultConfig(), reg, runner), clk
}

func doRequest(t *testing.T, api *ChiAPI, method, path string, body any) (*httptest.ResponseRecorder, proto.Envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	var env proto.Envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "Response should be a JSON envelope")
	}
	return rec, env
}

func createSubscription(t *testing.T, api *ChiAPI, owner string, req proto.CreateSubscriptionRequest) proto.Subscription {
	t.Helper()

	rec, env := doRequest(t, api, http.MethodPost, "/v1/owners/"+owner+"/subscriptions", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sub proto.Subscription
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	return sub
}

func TestHealthEndpoints(t *testing.T) {
	api, _ := setupTestAPI(t)

	rec, _ := doRequest(t, api, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doRequest(t, api, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "Not ready before Start")

	rec, _ = doRequest(t, api, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndListSubscriptions(t *testing.T) {
	api, _ := setupTestAPI(t)

	expires := testNow.Add(30 * 24 * time.Hour)
	sub := createSubscription(t, api, "alice", proto.CreateSubscriptionRequest{
		DeviceClientID: "c1",
		DeviceToken:    "t1",
		Types:          []string{"Mailbox", "Email"},
		Expires:        &expires,
	})
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, []string{"Email", "Mailbox"}, sub.Types)
	assert.True(t, testNow.Add(7*24*time.Hour).Equal(sub.ExpiresAt), "Expiry should be clamped")

	rec, env := doRequest(t, api, http.MethodGet, "/v1/owners/alice/subscriptions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var subs []proto.Subscription
	require.NoError(t, json.Unmarshal(env.Data, &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, sub.ID, subs[0].ID)

	rec, env = doRequest(t, api, http.MethodGet, "/v1/owners/alice/subscriptions?ids="+sub.ID+",unknown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &subs))
	assert.Len(t, subs, 1)

	rec, env = doRequest(t, api, http.MethodGet, "/v1/owners/bob/subscriptions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &subs))
	assert.Empty(t, subs)
}

func TestCreateSubscriptionErrors(t *testing.T) {
	api, _ := setupTestAPI(t)
	createSubscription(t, api, "alice", proto.CreateSubscriptionRequest{DeviceClientID: "c1", DeviceToken: "t1"})

	past := testNow.Add(-time.Second)
	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"MissingClientID", proto.CreateSubscriptionRequest{DeviceToken: "t2"}, http.StatusBadRequest, "required_field_missing"},
		{"MissingToken", proto.CreateSubscriptionRequest{DeviceClientID: "c2"}, http.StatusBadRequest, "required_field_missing"},
		{"UnknownType", proto.CreateSubscriptionRequest{DeviceClientID: "c2", DeviceToken: "t2", Types: []string{"Bogus"}}, http.StatusBadRequest, "invalid_type"},
		{"PastExpiry", proto.CreateSubscriptionRequest{DeviceClientID: "c2", DeviceToken: "t2", Expires: &past}, http.StatusBadRequest, "expire_time_invalid"},
		{"DuplicateClientID", proto.CreateSubscriptionRequest{DeviceClientID: "c1", DeviceToken: "t2"}, http.StatusConflict, "device_client_id_invalid"},
		{"DuplicateToken", proto.CreateSubscriptionRequest{DeviceClientID: "c2", DeviceToken: "t1"}, http.StatusConflict, "device_token_invalid"},
		{"UnknownField", map[string]any{"device_client_id": "c2", "device_token": "t2", "color": "red"}, http.StatusBadRequest, "invalid_json"},
		{"EmptyBody", nil, http.StatusBadRequest, "empty_request_body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := doRequest(t, api, http.MethodPost, "/v1/owners/alice/subscriptions", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantErr, env.Error.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestUpdateSubscription(t *testing.T) {
	api, clk := setupTestAPI(t)
	sub := createSubscription(t, api, "alice", proto.CreateSubscriptionRequest{DeviceClientID: "c1", DeviceToken: "t1"})

	expires := testNow.Add(48 * time.Hour)
	types := []string{"CalendarEvent"}
	rec, env := doRequest(t, api, http.MethodPatch, "/v1/owners/alice/subscriptions/"+sub.ID,
		proto.UpdateSubscriptionRequest{Expires: &expires, Types: &types})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result proto.UpdateSubscriptionResponse
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.NotNil(t, result.ExpiresAt)
	assert.True(t, expires.Equal(*result.ExpiresAt))
	assert.Equal(t, []string{"CalendarEvent"}, result.Types)

	rec, _ = doRequest(t, api, http.MethodPatch, "/v1/owners/alice/subscriptions/missing",
		proto.UpdateSubscriptionRequest{Expires: &expires})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doRequest(t, api, http.MethodPatch, "/v1/owners/alice/subscriptions/"+sub.ID,
		proto.UpdateSubscriptionRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "Empty update should be rejected")

	clk.Set(testNow.Add(72 * time.Hour))
	past := testNow
	rec, env = doRequest(t, api, http.MethodPatch, "/v1/owners/alice/subscriptions/"+sub.ID,
		proto.UpdateSubscriptionRequest{Expires: &past})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "expire_time_invalid", env.Error.Code)
}

func TestRevokeEndpoints(t *testing.T) {
	api, _ := setupTestAPI(t)
	a := createSubscription(t, api, "alice", proto.CreateSubscriptionRequest{DeviceClientID: "c1", DeviceToken: "t1"})
	createSubscription(t, api, "alice", proto.CreateSubscriptionRequest{DeviceClientID: "c2", DeviceToken: "t2"})

	rec, _ := doRequest(t, api, http.MethodDelete, "/v1/owners/alice/subscriptions/"+a.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doRequest(t, api, http.MethodDelete, "/v1/owners/alice/subscriptions/"+a.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "Revoke is idempotent")

	rec, env := doRequest(t, api, http.MethodGet, "/v1/owners/alice/subscriptions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []proto.Subscription
	require.NoError(t, json.Unmarshal(env.Data, &subs))
	assert.Len(t, subs, 1)

	rec, _ = doRequest(t, api, http.MethodDelete, "/v1/owners/alice/subscriptions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, env = doRequest(t, api, http.MethodGet, "/v1/owners/alice/subscriptions", nil)
	require.NoError(t, json.Unmarshal(env.Data, &subs))
	assert.Empty(t, subs)
}

func TestDeleteOwner(t *testing.T) {
	api, _ := setupTestAPI(t)
	createSubscription(t, api, "alice", proto.CreateSubscriptionRequest{DeviceClientID: "c1", DeviceToken: "t1"})

	rec, env := doRequest(t, api, http.MethodDelete, "/v1/owners/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result proto.DeleteOwnerResponse
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "alice", result.Owner)
	assert.Equal(t, []string{deletion.PushSubscriptionStepName}, result.Steps)

	_, env = doRequest(t, api, http.MethodGet, "/v1/owners/alice/subscriptions", nil)
	var subs []proto.Subscription
	require.NoError(t, json.Unmarshal(env.Data, &subs))
	assert.Empty(t, subs)
}

func TestEscapedOwner(t *testing.T) {
	api, _ := setupTestAPI(t)
	createSubscription(t, api, "alice%40example.com", proto.CreateSubscriptionRequest{DeviceClientID: "c1", DeviceToken: "t1"})

	_, env := doRequest(t, api, http.MethodGet, "/v1/owners/alice@example.com/subscriptions", nil)
	var subs []proto.Subscription
	require.NoError(t, json.Unmarshal(env.Data, &subs))
	assert.Len(t, subs, 1, "Escaped and plain owner forms should address the same account")
}

func TestOwnerDecodedOnce(t *testing.T) {
	api, _ := setupTestAPI(t)

	// "a%41" must stay distinct from "aA"
	createSubscription(t, api, "a%2541", proto.CreateSubscriptionRequest{DeviceClientID: "c1", DeviceToken: "t1"})

	_, env := doRequest(t, api, http.MethodGet, "/v1/owners/aA/subscriptions", nil)
	var subs []proto.Subscription
	require.NoError(t, json.Unmarshal(env.Data, &subs))
	assert.Empty(t, subs, "Percent sequences in an owner must not be decoded twice")

	_, env = doRequest(t, api, http.MethodGet, "/v1/owners/a%2541/subscriptions", nil)
	require.NoError(t, json.Unmarshal(env.Data, &subs))
	assert.Len(t, subs, 1)

	// A literal percent sign is a valid owner character
	created := createSubscription(t, api, "100%25", proto.CreateSubscriptionRequest{DeviceClientID: "c1", DeviceToken: "t1"})

	rec, _ := doRequest(t, api, http.MethodDelete, "/v1/owners/100%25/subscriptions/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// brokenStore fails every call
type brokenStore struct{}

var errStoreDown = errors.New("store down")

func (brokenStore) Put(context.Context, domain.Owner, domain.Subscription) error { return errStoreDown }
func (brokenStore) Get(context.Context, domain.Owner, domain.SubscriptionID) (domain.Subscription, bool, error) {
	return domain.Subscription{}, false, errStoreDown
}
func (brokenStore) GetAllForOwner(context.Context, domain.Owner) ([]domain.Subscription, error) {
	return nil, errStoreDown
}
func (brokenStore) Remove(context.Context, domain.Owner, domain.SubscriptionID) error { return errStoreDown }
func (brokenStore) RemoveAllForOwner(context.Context, domain.Owner) error           { return errStoreDown }
func (brokenStore) Close() error                                                   { return nil }

func TestStoreFailureIsInternalError(t *testing.T) {
	reg, err := registry.New(registry.DefaultConfig(), brokenStore{}, clock.NewFake(testNow))
	require.NoError(t, err)
	api := NewChiAPI(DefaultConfig(), reg, deletion.NewRunner(deletion.NewPushSubscriptionStep(reg, 10)))

	rec, env := doRequest(t, api, http.MethodGet, "/v1/owners/alice/subscriptions", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "internal_error", env.Error.Code)
	assert.NotContains(t, rec.Body.String(), errStoreDown.Error(), "The cause must not leak to clients")

	rec, _ = doRequest(t, api, http.MethodPost, "/v1/owners/alice/subscriptions",
		proto.CreateSubscriptionRequest{DeviceClientID: "c1", DeviceToken: "t1"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStartAndShutdown(t *testing.T) {
	clk := clock.NewFake(testNow)
	reg, err := registry.New(registry.DefaultConfig(), memory.NewStore(), clk)
	require.NoError(t, err)

	config := DefaultConfig()
	config.Addr = "127.0.0.1:0"
	api := NewChiAPI(config, reg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- api.Start(ctx) }()

	require.Eventually(t, func() bool { return api.ready.Load() }, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.NoError(t, api.Shutdown(context.Background()))
	assert.False(t, api.ready.Load())
}
