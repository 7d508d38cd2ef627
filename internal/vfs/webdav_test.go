package vfs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"organ/internal/config"
)

func newTestWebDAV(t *testing.T, handler http.HandlerFunc) *WebDAV {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter, err := NewWebDAV(config.WebDAV{
		URL:      server.URL + "/dav",
		Username: "alice",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("NewWebDAV: %v", err)
	}
	return adapter
}

const listMultistatus = `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/dav/media/tv/</d:href>
    <d:propstat>
      <d:status>HTTP/1.1 200 OK</d:status>
      <d:prop><d:resourcetype><d:collection/></d:resourcetype></d:prop>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/dav/media/tv/Dark/</d:href>
    <d:propstat>
      <d:status>HTTP/1.1 200 OK</d:status>
      <d:prop><d:resourcetype><d:collection/></d:resourcetype></d:prop>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/dav/media/tv/episode%201.MKV</d:href>
    <d:propstat>
      <d:status>HTTP/1.1 200 OK</d:status>
      <d:prop>
        <d:getcontentlength>2048</d:getcontentlength>
        <d:getlastmodified>Mon, 02 Jan 2006 15:04:05 GMT</d:getlastmodified>
        <d:resourcetype/>
      </d:prop>
    </d:propstat>
  </d:response>
</d:multistatus>`

func TestWebDAVListParsesMultistatus(t *testing.T) {
	var gotDepth string
	adapter := newTestWebDAV(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PROPFIND" {
			t.Errorf("method = %s", r.Method)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "alice" || pass != "secret" {
			t.Errorf("basic auth = %s:%s (%v)", user, pass, ok)
		}
		gotDepth = r.Header.Get("Depth")
		w.WriteHeader(http.StatusMultiStatus)
		w.Write([]byte(listMultistatus))
	})

	infos, err := adapter.List(context.Background(), "/media/tv")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if gotDepth != "1" {
		t.Errorf("Depth = %q", gotDepth)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d entries: %+v", len(infos), infos)
	}
	dir, file := infos[0], infos[1]
	if dir.Name != "Dark" || !dir.IsDir || dir.Path != "/media/tv/Dark" {
		t.Errorf("dir = %+v", dir)
	}
	if file.Name != "episode 1.MKV" || file.IsDir || file.Size != 2048 || file.Ext != ".mkv" {
		t.Errorf("file = %+v", file)
	}
	want := time.Date(2006, time.January, 2, 15, 4, 5, 0, time.UTC)
	if !file.Modified.Equal(want) {
		t.Errorf("modified = %v", file.Modified)
	}
}

func TestWebDAVListKeepsChildNamedLikeBase(t *testing.T) {
	const body = `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/dav/movies/</d:href>
    <d:propstat>
      <d:status>HTTP/1.1 200 OK</d:status>
      <d:prop><d:resourcetype><d:collection/></d:resourcetype></d:prop>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/dav/movies/movies/</d:href>
    <d:propstat>
      <d:status>HTTP/1.1 200 OK</d:status>
      <d:prop><d:resourcetype><d:collection/></d:resourcetype></d:prop>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/dav/movies/film.mkv</d:href>
    <d:propstat>
      <d:status>HTTP/1.1 200 OK</d:status>
      <d:prop>
        <d:getcontentlength>512</d:getcontentlength>
        <d:resourcetype/>
      </d:prop>
    </d:propstat>
  </d:response>
</d:multistatus>`

	adapter := newTestWebDAV(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMultiStatus)
		w.Write([]byte(body))
	})

	infos, err := adapter.List(context.Background(), "/movies")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d entries: %+v", len(infos), infos)
	}
	if infos[0].Name != "movies" || !infos[0].IsDir || infos[0].Path != "/movies/movies" {
		t.Errorf("dir = %+v", infos[0])
	}
	if infos[1].Name != "film.mkv" || infos[1].IsDir {
		t.Errorf("file = %+v", infos[1])
	}
}

func TestWebDAVListStatusCategories(t *testing.T) {
	status := http.StatusNotFound
	adapter := newTestWebDAV(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
	ctx := context.Background()

	if _, err := adapter.List(ctx, "/gone"); !IsNotFound(err) {
		t.Errorf("404: want not-found, got %v", err)
	}
	status = http.StatusUnauthorized
	if _, err := adapter.List(ctx, "/locked"); !IsPermission(err) {
		t.Errorf("401: want permission, got %v", err)
	}
	status = http.StatusBadGateway
	if _, err := adapter.List(ctx, "/broken"); err == nil || IsNotFound(err) || IsPermission(err) {
		t.Errorf("502: want generic adapter error, got %v", err)
	}
}

func TestWebDAVStatFile(t *testing.T) {
	const statBody = `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/dav/media/tv/file.mkv</d:href>
    <d:propstat>
      <d:status>HTTP/1.1 200 OK</d:status>
      <d:prop>
        <d:getcontentlength>7</d:getcontentlength>
        <d:resourcetype/>
      </d:prop>
    </d:propstat>
  </d:response>
</d:multistatus>`

	adapter := newTestWebDAV(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Depth"); got != "0" {
			t.Errorf("Depth = %q", got)
		}
		w.WriteHeader(http.StatusMultiStatus)
		w.Write([]byte(statBody))
	})

	info, err := adapter.Stat(context.Background(), "/media/tv/file.mkv")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.IsDir || info.Size != 7 || info.Path != "/media/tv/file.mkv" {
		t.Errorf("info = %+v", info)
	}
}

func TestWebDAVMkdirAllToleratesExisting(t *testing.T) {
	var paths []string
	adapter := newTestWebDAV(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "MKCOL" {
			t.Errorf("method = %s", r.Method)
		}
		paths = append(paths, r.URL.Path)
		if len(paths) == 1 {
			// First segment already exists.
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	if err := adapter.MkdirAll(context.Background(), "/tv/Dark (2017)"); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/dav/tv" || paths[1] != "/dav/tv/Dark (2017)" {
		t.Fatalf("paths = %v", paths)
	}
}

func TestWebDAVMoveSetsDestinationAndOverwrite(t *testing.T) {
	var destination, overwrite string
	adapter := newTestWebDAV(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "MKCOL":
			w.WriteHeader(http.StatusCreated)
		case "MOVE":
			destination = r.Header.Get("Destination")
			overwrite = r.Header.Get("Overwrite")
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("method = %s", r.Method)
		}
	})

	if err := adapter.Move(context.Background(), "/src.mkv", "/archive/dst.mkv", true); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !strings.HasSuffix(destination, "/dav/archive/dst.mkv") {
		t.Errorf("Destination = %q", destination)
	}
	if overwrite != "T" {
		t.Errorf("Overwrite = %q", overwrite)
	}
}

func TestWebDAVMoveDestinationExists(t *testing.T) {
	adapter := newTestWebDAV(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "MKCOL" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusPreconditionFailed)
	})

	err := adapter.Move(context.Background(), "/src.mkv", "/dst.mkv", false)
	if err == nil || IsNotFound(err) || IsPermission(err) {
		t.Fatalf("want generic adapter error, got %v", err)
	}
	if !strings.Contains(err.Error(), "destination exists") {
		t.Errorf("err = %v", err)
	}
}

func TestWebDAVDeleteMissingIsOK(t *testing.T) {
	adapter := newTestWebDAV(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
	})

	if err := adapter.Delete(context.Background(), "/already/gone.mkv", false); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
