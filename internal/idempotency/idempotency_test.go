package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/platform/requestctx"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const donateMethod = "/escrow.v1.EscrowService/Donate"

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

// fakeRedis implements the handful of commands Redis uses.
type fakeRedis struct {
	redis.Cmdable
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = string(value.([]byte))
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	value, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestStores(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	stores := map[string]Store{
		"memory": NewMemory(clock.Now),
		"redis":  NewRedis(newFakeRedis()),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			pending := Record{Fingerprint: "fp"}
			if _, claimed, err := store.Claim(ctx, "k", pending, time.Hour); err != nil || !claimed {
				t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
			}
			existing, claimed, err := store.Claim(ctx, "k", Record{Fingerprint: "other"}, time.Hour)
			if err != nil || claimed {
				t.Fatalf("second claim: claimed=%v err=%v", claimed, err)
			}
			if existing.Fingerprint != "fp" || existing.Completed {
				t.Fatalf("unexpected pending record %+v", existing)
			}

			if err := store.Complete(ctx, "k", Record{Fingerprint: "fp", Response: []byte(`{"a":1}`), Completed: true}, time.Hour); err != nil {
				t.Fatalf("complete: %v", err)
			}
			existing, _, _ = store.Claim(ctx, "k", pending, time.Hour)
			if !existing.Completed || string(existing.Response) != `{"a":1}` {
				t.Fatalf("unexpected completed record %+v", existing)
			}

			if err := store.Release(ctx, "k"); err != nil {
				t.Fatalf("release: %v", err)
			}
			if _, claimed, _ := store.Claim(ctx, "k", pending, time.Hour); !claimed {
				t.Fatal("expected key to be claimable after release")
			}
		})
	}
}

func TestMemoryExpires(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemory(clock.Now)
	ctx := context.Background()
	if _, claimed, _ := store.Claim(ctx, "k", Record{Fingerprint: "fp"}, time.Minute); !claimed {
		t.Fatal("expected first claim")
	}
	clock.now = clock.now.Add(time.Minute)
	if _, claimed, _ := store.Claim(ctx, "k", Record{Fingerprint: "fp"}, time.Minute); !claimed {
		t.Fatal("expected claim after expiry")
	}
}

func TestConnectRequiresURL(t *testing.T) {
	if _, err := Connect(" "); err == nil {
		t.Fatal("expected error for blank url")
	}
	client, err := Connect("redis://localhost:6379/2")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	if client.Options().DB != 2 {
		t.Fatalf("db = %d, want 2", client.Options().DB)
	}
}

func testRequest(t *testing.T, amount float64) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(map[string]any{"campaign_id": "c1", "amount": amount})
	if err != nil {
		t.Fatalf("new struct: %v", err)
	}
	return req
}

func keyedContext(caller, key string) context.Context {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(KeyHeader, key))
	return requestctx.WithCaller(ctx, caller)
}

func TestInterceptor(t *testing.T) {
	calls := 0
	fail := false
	handler := func(ctx context.Context, req any) (any, error) {
		calls++
		if fail {
			return nil, errors.New("boom")
		}
		return structpb.NewStruct(map[string]any{"balance": float64(calls)})
	}
	interceptor := UnaryServerInterceptor(InterceptorConfig{
		Store:   NewMemory(nil),
		Methods: map[string]bool{donateMethod: true},
		NewResponse: func(string) proto.Message {
			return &structpb.Struct{}
		},
	})
	info := &grpc.UnaryServerInfo{FullMethod: donateMethod}

	first, err := interceptor(keyedContext("alice", "k1"), testRequest(t, 5), info, handler)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := interceptor(keyedContext("alice", "k1"), testRequest(t, 5), info, handler)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if !proto.Equal(first.(proto.Message), second.(proto.Message)) {
		t.Fatalf("replayed %v, want %v", second, first)
	}

	t.Run("different request", func(t *testing.T) {
		_, err := interceptor(keyedContext("alice", "k1"), testRequest(t, 6), info, handler)
		if !errors.Is(err, ErrFingerprintMismatch) {
			t.Fatalf("expected fingerprint mismatch, got %v", err)
		}
	})
	t.Run("other caller", func(t *testing.T) {
		if _, err := interceptor(keyedContext("bob", "k1"), testRequest(t, 5), info, handler); err != nil {
			t.Fatalf("call: %v", err)
		}
		if calls != 2 {
			t.Fatalf("handler calls = %d, want 2", calls)
		}
	})
	t.Run("no key", func(t *testing.T) {
		before := calls
		ctx := requestctx.WithCaller(context.Background(), "alice")
		if _, err := interceptor(ctx, testRequest(t, 5), info, handler); err != nil {
			t.Fatalf("call: %v", err)
		}
		if calls != before+1 {
			t.Fatal("expected unkeyed call to execute")
		}
	})
	t.Run("unlisted method", func(t *testing.T) {
		before := calls
		other := &grpc.UnaryServerInfo{FullMethod: "/escrow.v1.EscrowService/GetDonation"}
		_, _ = interceptor(keyedContext("alice", "k1"), testRequest(t, 5), other, handler)
		if calls != before+1 {
			t.Fatal("expected unlisted method to execute")
		}
	})
	t.Run("failure releases key", func(t *testing.T) {
		fail = true
		if _, err := interceptor(keyedContext("alice", "k2"), testRequest(t, 5), info, handler); err == nil {
			t.Fatal("expected handler error")
		}
		fail = false
		before := calls
		if _, err := interceptor(keyedContext("alice", "k2"), testRequest(t, 5), info, handler); err != nil {
			t.Fatalf("retry after failure: %v", err)
		}
		if calls != before+1 {
			t.Fatal("expected retry after failure to execute")
		}
	})
}

func TestInterceptorReportsInProgress(t *testing.T) {
	store := NewMemory(nil)
	req := testRequest(t, 5)
	fingerprint, err := Fingerprint(req)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	key := scopedKey(donateMethod, "alice", "k1")
	if _, claimed, _ := store.Claim(context.Background(), key, Record{Fingerprint: fingerprint}, time.Hour); !claimed {
		t.Fatal("expected claim")
	}
	interceptor := UnaryServerInterceptor(InterceptorConfig{Store: store, Methods: map[string]bool{donateMethod: true}})
	_, err = interceptor(keyedContext("alice", "k1"), req, &grpc.UnaryServerInfo{FullMethod: donateMethod}, func(context.Context, any) (any, error) {
		t.Fatal("handler must not run")
		return nil, nil
	})
	if !errors.Is(err, ErrInProgress) {
		t.Fatalf("expected in progress, got %v", err)
	}
}
