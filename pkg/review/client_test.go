package review

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(url string) *Client {
	c := New(url)
	c.Delay = 5 * time.Millisecond
	return c
}

func sampleSubmission() Submission {
	return Submission{
		ProfileID:       1,
		FullName:        "Ayu Lestari",
		Phone:           "+62 812-3456-789",
		DocumentIDs:     []string{"rec-1", "rec-2"},
		TermsAccepted:   true,
		PrivacyAccepted: true,
	}
}

func TestSubmitLocalAckWithoutURL(t *testing.T) {
	ack, err := New("").SubmitVerification(context.Background(), sampleSubmission())
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, ack.Status)
	assert.NotEmpty(t, ack.Reference)
}

func TestSubmitFirstAttemptSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var sub Submission
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&sub))
		assert.Equal(t, uint(1), sub.ProfileID)
		json.NewEncoder(w).Encode(Ack{Reference: "ref-123", Status: StatusReceived})
	}))
	defer srv.Close()

	ack, err := testClient(srv.URL).SubmitVerification(context.Background(), sampleSubmission())
	require.NoError(t, err)
	assert.Equal(t, "ref-123", ack.Reference)
	assert.Equal(t, StatusReceived, ack.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSubmitRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(Ack{Reference: "ref-eventual"})
	}))
	defer srv.Close()

	ack, err := testClient(srv.URL).SubmitVerification(context.Background(), sampleSubmission())
	require.NoError(t, err)
	assert.Equal(t, "ref-eventual", ack.Reference)
	assert.Equal(t, StatusReceived, ack.Status, "missing status defaults to received")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSubmitExhaustedFallsBackToQueued(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ack, err := testClient(srv.URL).SubmitVerification(context.Background(), sampleSubmission())
	require.NoError(t, err, "exhausted retries are a queued state, not an error")
	assert.Equal(t, StatusQueued, ack.Status)
	assert.NotEmpty(t, ack.Reference)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSubmitCancelledBetweenAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(srv.URL)
	c.Delay = time.Minute // force the cancel branch of the inter-attempt wait
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.SubmitVerification(ctx, sampleSubmission())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
