package db

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws/credentials"
	signer "github.com/aws/aws-sdk-go/aws/signer/v4"
)

const esService = "es"

// amazonESTransport signs requests to Amazon Elasticsearch Service with
// AWS signature version 4.
type amazonESTransport struct {
	awsSigner *signer.Signer
	region    string
	next      http.RoundTripper
	now       func() time.Time
}

// NewAmazonESTransport signs with the credentials found in the environment,
// which is where Lambda puts them.
func NewAmazonESTransport(region string) http.RoundTripper {
	return newAmazonESTransport(credentials.NewEnvCredentials(), region, http.DefaultTransport)
}

func newAmazonESTransport(creds *credentials.Credentials, region string, next http.RoundTripper) *amazonESTransport {
	return &amazonESTransport{
		awsSigner: signer.NewSigner(creds),
		region:    region,
		next:      next,
		now:       time.Now,
	}
}

func (t *amazonESTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if h := req.Header.Get("Authorization"); strings.HasPrefix(h, "AWS4") {
		return t.next.RoundTrip(req)
	}

	now := t.now()
	var err error
	if req.Body == nil {
		_, err = t.awsSigner.Sign(req, nil, esService, t.region, now)
	} else {
		var b []byte
		b, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err == nil {
			req.Body = io.NopCloser(bytes.NewReader(b))
			_, err = t.awsSigner.Sign(req, bytes.NewReader(b), esService, t.region, now)
		}
	}
	if err != nil {
		log.Printf("db: sign %s %s: %v", req.Method, req.URL, err)
		return nil, err
	}
	return t.next.RoundTrip(req)
}
