package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestLabelsOrderedByScore(t *testing.T) {
	var sent annotateRequest
	l := New(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost {
			t.Errorf("method = %s", req.Method)
		}
		if err := json.NewDecoder(req.Body).Decode(&sent); err != nil {
			t.Errorf("decode: %v", err)
		}
		return respond(http.StatusOK, `{"responses":[{"labelAnnotations":[
			{"description":"Whiskers","score":0.71},
			{"description":"Cat","score":0.98},
			{"description":"Mammal","score":0.9}
		]}]}`), nil
	})}, "http://vision.test/v1/images:annotate")

	got, err := l.Labels(context.Background(), []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Labels: %v", err)
	}
	want := []string{"Cat", "Mammal", "Whiskers"}
	if len(got) != len(want) {
		t.Fatalf("labels = %+v", got)
	}
	for i, w := range want {
		if got[i].Label != w {
			t.Fatalf("labels[%d] = %q, want %q", i, got[i].Label, w)
		}
	}

	if len(sent.Requests) != 1 || sent.Requests[0].Features[0].Type != "LABEL_DETECTION" {
		t.Fatalf("request = %+v", sent)
	}
	if dec, _ := base64.StdEncoding.DecodeString(sent.Requests[0].Image.Content); string(dec) != "png-bytes" {
		t.Fatalf("image content = %q", dec)
	}
}

func TestLabelsErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http status", http.StatusForbidden, `{"error":{"message":"denied"}}`},
		{"per-image error", http.StatusOK, `{"responses":[{"error":{"code":3,"message":"bad image"}}]}`},
		{"bad json", http.StatusOK, `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(&http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
				return respond(tt.status, tt.body), nil
			})}, "")
			if _, err := l.Labels(context.Background(), []byte("x")); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLabelsEmptyImage(t *testing.T) {
	l := New(http.DefaultClient, "")
	if _, err := l.Labels(context.Background(), nil); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("err = %v, want ErrEmptyImage", err)
	}
}

func TestLabelsNoDetections(t *testing.T) {
	l := New(&http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return respond(http.StatusOK, `{"responses":[{}]}`), nil
	})}, "")
	got, err := l.Labels(context.Background(), []byte("x"))
	if err != nil || len(got) != 0 {
		t.Fatalf("Labels = %+v, %v", got, err)
	}
}
