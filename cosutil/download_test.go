/*
Copyright © 2019 the COSFlux authors.
This file is part of COSFlux.

COSFlux is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

COSFlux is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with COSFlux.  If not, see <http://www.gnu.org/licenses/>.
*/

package cosutil

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

func helperLog(t *testing.T) logrus.FieldLogger {
	log := logrus.New()
	log.Out = ioutil.Discard
	return log
}

func TestMaybeDownloadLocal(t *testing.T) {
	ctx := context.Background()
	for _, p := range []string{"/dev/null", "/blah/test/", ""} {
		k, err := maybeDownload(ctx, p, helperLog(t))
		if err != nil {
			t.Errorf("%s: %v", p, err)
		}
		if k != p {
			t.Errorf("have %s; want %s", k, p)
		}
	}
}

func TestMaybeDownloadRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fluxes/ocean.nc" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "ocean flux")
	}))
	defer srv.Close()

	k, err := maybeDownload(context.Background(), srv.URL+"/fluxes/ocean.nc", helperLog(t))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(k) != "ocean.nc" {
		t.Errorf("downloaded to %s", k)
	}
	b, err := ioutil.ReadFile(k)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "ocean flux" {
		t.Errorf("contents %q", b)
	}
}

func TestMaybeDownloadRemoteFail(t *testing.T) {
	old := downloadBackOff
	defer func() { downloadBackOff = old }()
	downloadBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := maybeDownload(context.Background(), srv.URL+"/missing.nc", helperLog(t)); err == nil {
		t.Error("expected an error")
	}
	if requests != 3 {
		t.Errorf("%d requests; want 3", requests)
	}
}

func TestMaybeDownloadBlob(t *testing.T) {
	dir, err := ioutil.TempDir("", "cosflux_blob")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	// File buckets are relative to the working directory.
	if err = os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	if err = os.Mkdir("bucket", os.ModePerm); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	b, err := OpenBucket(ctx, "file://bucket")
	if err != nil {
		t.Fatal(err)
	}
	w, err := b.NewWriter(ctx, "soil.nc", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = w.Write([]byte("soil flux")); err != nil {
		t.Fatal(err)
	}
	if err = w.Close(); err != nil {
		t.Fatal(err)
	}

	k, err := maybeDownload(ctx, "file://bucket/soil.nc", helperLog(t))
	if err != nil {
		t.Fatal(err)
	}
	data, err := ioutil.ReadFile(k)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "soil flux" {
		t.Errorf("contents %q", data)
	}

	if _, err = OpenBucket(ctx, "ftp://bucket"); err == nil {
		t.Error("expected an error for an unknown provider")
	}
}

func TestIsBlob(t *testing.T) {
	for p, want := range map[string]bool{
		"gs://b/f.nc":   true,
		"s3://b/f.nc":   true,
		"file://b/f.nc": true,
		"/data/f.nc":    false,
		"http://x/f.nc": false,
	} {
		if IsBlob(p) != want {
			t.Errorf("IsBlob(%s) != %v", p, want)
		}
	}
}
