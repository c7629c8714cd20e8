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
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
	"github.com/google/go-cloud/blob/gcsblob"
	"github.com/google/go-cloud/blob/s3blob"
	"github.com/google/go-cloud/gcp"
	"github.com/sirupsen/logrus"
)

// downloadBackOff returns the retry policy for HTTP downloads.
var downloadBackOff = func() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
}

// maybeDownload checks if path is an existing local file. If it is not,
// and path is a URL or blob location, it downloads the file to a temporary
// directory and returns the location of the downloaded file. Otherwise it
// returns path unchanged. Environment variables in path are expanded.
func maybeDownload(ctx context.Context, path string, log logrus.FieldLogger) (string, error) {
	path = os.ExpandEnv(path)
	if path == "" {
		return path, nil
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return downloadHTTP(path, log)
	}
	if IsBlob(path) {
		return downloadBlob(ctx, path, log)
	}
	return path, nil
}

// tempFile creates a file in a new temporary directory with the base name
// of path.
func tempFile(path string) (*os.File, error) {
	dir, err := ioutil.TempDir("", "cosflux")
	if err != nil {
		return nil, fmt.Errorf("cosutil: creating temporary download directory: %v", err)
	}
	w, err := os.Create(filepath.Join(dir, filepath.Base(path)))
	if err != nil {
		return nil, fmt.Errorf("cosutil: creating file for download: %v", err)
	}
	return w, nil
}

// downloadHTTP downloads a file from the specified URL, retrying failed
// requests, and returns the path to the downloaded file.
func downloadHTTP(path string, log logrus.FieldLogger) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return path, fmt.Errorf("cosutil: %v", err)
	}
	w, err := tempFile(u.Path)
	if err != nil {
		return path, err
	}
	defer w.Close()
	err = backoff.RetryNotify(
		func() error {
			resp, err := http.Get(path)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("downloading %s: %s", path, resp.Status)
			}
			if _, err = w.Seek(0, io.SeekStart); err != nil {
				return err
			}
			if err = w.Truncate(0); err != nil {
				return err
			}
			_, err = io.Copy(w, resp.Body)
			return err
		},
		downloadBackOff(),
		func(err error, d time.Duration) {
			log.WithFields(logrus.Fields{"url": path, "retry_in": d}).Warn(err)
		},
	)
	if err != nil {
		return path, fmt.Errorf("cosutil: %v", err)
	}
	log.WithFields(logrus.Fields{"url": path, "file": w.Name()}).Info("downloaded input file")
	return w.Name(), nil
}

// IsBlob returns whether the given filename represents a blob.
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name'. The
// accepted storage providers are "file" for the local filesystem,
// "gs" for Google Cloud Storage, and "s3" for AWS S3. For the "file"
// provider, name is a directory relative to the working directory.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("cosutil: opening bucket: %v", err)
	}
	switch u.Scheme {
	case "file":
		return fileblob.NewBucket(u.Host)
	case "gs":
		creds, err := gcp.DefaultCredentials(ctx)
		if err != nil {
			return nil, err
		}
		c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
		if err != nil {
			return nil, err
		}
		return gcsblob.OpenBucket(ctx, u.Host, c)
	case "s3":
		return s3Bucket(ctx, u.Host)
	default:
		return nil, fmt.Errorf("cosutil: invalid bucket provider %s", u.Scheme)
	}
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	s, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	})
	if err != nil {
		return nil, fmt.Errorf("cosutil: creating AWS session: %v", err)
	}
	return s3blob.OpenBucket(ctx, s, name)
}

// downloadBlob downloads the specified file from blob storage.
func downloadBlob(ctx context.Context, path string, log logrus.FieldLogger) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return path, fmt.Errorf("cosutil: %v", err)
	}
	bucket, err := OpenBucket(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return path, err
	}
	r, err := bucket.NewReader(ctx, strings.TrimPrefix(u.Path, "/"))
	if err != nil {
		return path, fmt.Errorf("cosutil: reading %s: %v", path, err)
	}
	defer r.Close()
	w, err := tempFile(u.Path)
	if err != nil {
		return path, err
	}
	defer w.Close()
	if _, err = io.Copy(w, r); err != nil {
		return path, fmt.Errorf("cosutil: downloading %s: %v", path, err)
	}
	log.WithFields(logrus.Fields{"blob": path, "file": w.Name()}).Info("downloaded input file")
	return w.Name(), nil
}
