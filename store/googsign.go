package store

import (
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// resignTransport recalculates the V4 signature without the
// Accept-Encoding header. The GCS interoperability layer rejects requests
// whose signature covers it.
type resignTransport struct {
	next   http.RoundTripper
	signer *v4.Signer
	cfg    aws.Config
}

func newResignTransport(next http.RoundTripper, cfg aws.Config) *resignTransport {
	return &resignTransport{next: next, signer: v4.NewSigner(), cfg: cfg}
}

func (t *resignTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	val := req.Header.Get("Accept-Encoding")
	req.Header.Del("Accept-Encoding")

	timeString := req.Header.Get("X-Amz-Date")
	timeDate, _ := time.Parse("20060102T150405Z", timeString)

	creds, _ := t.cfg.Credentials.Retrieve(req.Context())
	err := t.signer.SignHTTP(req.Context(), creds, req, v4.GetPayloadHash(req.Context()), "s3", t.cfg.Region, timeDate)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept-Encoding", val)

	return t.next.RoundTrip(req)
}
