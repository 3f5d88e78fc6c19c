package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newAuthServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)
	return server, New(server.URL, "anon-key", server.Client())
}

func writeSession(w http.ResponseWriter, accessToken, refreshToken, userID, email string) {
	json.NewEncoder(w).Encode(map[string]any{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    3600,
		"user": map[string]any{
			"id":    userID,
			"email": email,
			"user_metadata": map[string]any{
				"name": "Ana",
			},
		},
	})
}

type authRecord struct {
	event    AuthEvent
	identity *Identity
}

func recordEvents(c *Client) *[]authRecord {
	events := &[]authRecord{}
	c.OnAuthStateChange(func(event AuthEvent, identity *Identity) {
		*events = append(*events, authRecord{event: event, identity: identity})
	})
	return events
}

func TestSignIn_EmitsSignedInWithIdentity(t *testing.T) {
	_, client := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("grant_type"); got != "password" {
			t.Errorf("expected grant_type=password, got %q", got)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("expected apikey header, got %q", got)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "ana@example.com" {
			t.Errorf("unexpected email in body: %q", body["email"])
		}
		writeSession(w, "access-1", "refresh-1", "user-1", "ana@example.com")
	})

	events := recordEvents(client)
	if err := client.SignIn(context.Background(), "ana@example.com", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(*events))
	}
	got := (*events)[0]
	if got.event != EventSignedIn {
		t.Errorf("expected SIGNED_IN, got %s", got.event)
	}
	if got.identity == nil || got.identity.ID != "user-1" {
		t.Errorf("unexpected identity: %+v", got.identity)
	}
	if got.identity.MetadataString("name") != "Ana" {
		t.Errorf("expected metadata to survive, got %+v", got.identity.Metadata)
	}
}

func TestSignIn_InvalidCredentials_ReturnsReasonAndNoEvent(t *testing.T) {
	_, client := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	})

	events := recordEvents(client)
	err := client.SignIn(context.Background(), "ana@example.com", "wrong")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(*events) != 0 {
		t.Errorf("expected no events on failed sign-in, got %d", len(*events))
	}
	if client.Identity() != nil {
		t.Error("expected no session after failed sign-in")
	}
}

func TestSignOut_ClearsSessionEvenWhenServerFails(t *testing.T) {
	_, client := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			writeSession(w, "access-1", "refresh-1", "user-1", "ana@example.com")
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	if err := client.SignIn(context.Background(), "ana@example.com", "secret"); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}

	events := recordEvents(client)
	err := client.SignOut(context.Background())
	if err == nil {
		t.Fatal("expected server-side sign-out error")
	}

	if client.Identity() != nil {
		t.Error("expected local session cleared despite server failure")
	}
	if len(*events) != 1 || (*events)[0].event != EventSignedOut {
		t.Fatalf("expected SIGNED_OUT event, got %+v", *events)
	}
	if (*events)[0].identity != nil {
		t.Error("expected nil identity on SIGNED_OUT")
	}
}

func TestHydrate_EmptyToken_EmitsInitialSessionNil(t *testing.T) {
	_, client := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty refresh token")
	})

	events := recordEvents(client)
	if err := client.Hydrate(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*events) != 1 || (*events)[0].event != EventInitialSession {
		t.Fatalf("expected INITIAL_SESSION event, got %+v", *events)
	}
	if (*events)[0].identity != nil {
		t.Error("expected nil identity without stored session")
	}
}

func TestHydrate_ValidToken_RestoresSession(t *testing.T) {
	_, client := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("grant_type"); got != "refresh_token" {
			t.Errorf("expected grant_type=refresh_token, got %q", got)
		}
		writeSession(w, "access-2", "refresh-2", "user-1", "ana@example.com")
	})

	events := recordEvents(client)
	if err := client.Hydrate(context.Background(), "stored-token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*events) != 1 || (*events)[0].event != EventInitialSession {
		t.Fatalf("expected INITIAL_SESSION event, got %+v", *events)
	}
	if (*events)[0].identity == nil || (*events)[0].identity.ID != "user-1" {
		t.Errorf("unexpected identity: %+v", (*events)[0].identity)
	}
}

func TestHydrate_ExpiredToken_FallsBackToUnauthenticated(t *testing.T) {
	_, client := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"msg":"refresh token expired"}`))
	})

	events := recordEvents(client)
	err := client.Hydrate(context.Background(), "expired-token")
	if err == nil {
		t.Fatal("expected error for expired token")
	}

	if len(*events) != 1 || (*events)[0].event != EventInitialSession {
		t.Fatalf("expected INITIAL_SESSION event, got %+v", *events)
	}
	if (*events)[0].identity != nil {
		t.Error("expected nil identity after failed restore")
	}
	if client.Identity() != nil {
		t.Error("expected no session after failed restore")
	}
}

func TestRefresh_EmitsTokenRefreshed(t *testing.T) {
	calls := 0
	_, client := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			writeSession(w, "access-1", "refresh-1", "user-1", "ana@example.com")
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["refresh_token"] != "refresh-1" {
			t.Errorf("expected stored refresh token, got %q", body["refresh_token"])
		}
		writeSession(w, "access-2", "refresh-2", "user-1", "ana@example.com")
	})

	if err := client.SignIn(context.Background(), "ana@example.com", "secret"); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}

	events := recordEvents(client)
	if err := client.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*events) != 1 || (*events)[0].event != EventTokenRefreshed {
		t.Fatalf("expected TOKEN_REFRESHED event, got %+v", *events)
	}
	if (*events)[0].identity == nil {
		t.Error("expected identity on token refresh")
	}
}

func TestRefresh_WithoutSession_IsNoop(t *testing.T) {
	_, client := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a session")
	})

	events := recordEvents(client)
	if err := client.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*events) != 0 {
		t.Errorf("expected no events, got %d", len(*events))
	}
}

func TestSignUp_PendingConfirmation_KeepsNoSession(t *testing.T) {
	_, client := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/signup" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		meta, _ := body["data"].(map[string]any)
		if meta["name"] != "Ana" {
			t.Errorf("expected metadata in signup body, got %+v", body["data"])
		}
		// メール確認待ちの場合、GoTrueはユーザーのみを返しセッションを含まない
		json.NewEncoder(w).Encode(map[string]any{"id": "user-1", "email": "ana@example.com"})
	})

	events := recordEvents(client)
	err := client.SignUp(context.Background(), "ana@example.com", "secret", map[string]any{"name": "Ana"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*events) != 0 {
		t.Errorf("expected no events while confirmation is pending, got %d", len(*events))
	}
	if client.Identity() != nil {
		t.Error("expected no session while confirmation is pending")
	}
}

func TestOnAuthStateChange_UnsubscribeStopsDelivery(t *testing.T) {
	_, client := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeSession(w, "access-1", "refresh-1", "user-1", "ana@example.com")
	})

	calls := 0
	unsubscribe := client.OnAuthStateChange(func(event AuthEvent, identity *Identity) {
		calls++
	})

	if err := client.SignIn(context.Background(), "ana@example.com", "secret"); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	unsubscribe()
	unsubscribe()
	if err := client.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if calls != 1 {
		t.Errorf("expected 1 delivery before unsubscribe, got %d", calls)
	}
}
