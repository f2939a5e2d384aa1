package unit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/go-rtrtr/rtrtr/comms"
	"github.com/go-rtrtr/rtrtr/payload"
)

// jsonDocument is the on-the-wire VRP export format: a flat array of ROA
// records under "roas", the format produced by the RPKI validators this
// relay is meant to sit behind.
type jsonDocument struct {
	ROAs []jsonROA `json:"roas"`
}

type jsonROA struct {
	Prefix    string `json:"prefix"`
	MaxLength uint8  `json:"maxLength"`
	ASN       string `json:"asn"`
}

func (r jsonROA) toPayload() (payload.Payload, error) {
	prefix, err := netip.ParsePrefix(r.Prefix)
	if err != nil {
		return payload.Payload{}, fmt.Errorf("unit/json: invalid prefix %q: %w", r.Prefix, err)
	}
	asn, err := strconv.ParseUint(strings.TrimPrefix(strings.ToUpper(r.ASN), "AS"), 10, 32)
	if err != nil {
		return payload.Payload{}, fmt.Errorf("unit/json: invalid asn %q: %w", r.ASN, err)
	}
	maxLength := r.MaxLength
	if maxLength == 0 {
		maxLength = uint8(prefix.Bits())
	}
	return payload.Payload{Prefix: prefix, MaxLength: maxLength, ASN: uint32(asn)}, nil
}

// JSON is a unit that periodically fetches a VRP JSON document from a file
// path or an http(s) URI and republishes it as a full Set, deriving a Diff
// against its previous pull so downstream targets see an incremental
// update whenever possible.
type JSON struct {
	base

	URI     string
	Refresh time.Duration

	client *retryablehttp.Client
	log    *logrus.Entry
}

// NewJSON constructs a JSON unit. uri may be a bare filesystem path, a
// file:// URI, or an http(s):// URI.
func NewJSON(name, uri string, refresh time.Duration) *JSON {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 4

	return &JSON{
		base:    newBase(name),
		URI:     uri,
		Refresh: refresh,
		client:  client,
		log:     logrus.WithField("unit", name).WithField("kind", "json"),
	}
}

// Run implements Unit.
func (u *JSON) Run(ctx context.Context) error {
	current := payload.Empty
	var serial uint32

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := u.Gate().Process(ctx); err != nil && err != context.Canceled {
			return err
		}

		set, err := u.fetch(ctx)
		if err != nil {
			u.log.WithError(err).Warn("fetch failed")
			u.Gate().UpdateStatus(comms.Stalled)
		} else {
			diff := payload.Between(current, set)
			serial++
			if current == payload.Empty || current.Len() == 0 {
				u.Gate().UpdateData(payload.NewFullUpdate(set, serial))
			} else if diff.Len() > 0 {
				u.Gate().UpdateData(payload.NewDiffUpdate(set, diff, serial))
			}
			current = set
			u.Gate().UpdateStatus(comms.Healthy)
		}

		if !sleep(ctx, u.Refresh) {
			return ctx.Err()
		}
	}
}

func (u *JSON) fetch(ctx context.Context) (*payload.Set, error) {
	body, err := u.read(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var doc jsonDocument
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("unit/json: decode %s: %w", u.URI, err)
	}

	pb := payload.NewPackBuilder(len(doc.ROAs))
	for _, r := range doc.ROAs {
		p, err := r.toPayload()
		if err != nil {
			u.log.WithError(err).Debug("skipping malformed roa entry")
			continue
		}
		pb.Push(p)
	}
	return payload.NewSet(pb.Finalize()), nil
}

func (u *JSON) read(ctx context.Context) (io.ReadCloser, error) {
	if strings.HasPrefix(u.URI, "http://") || strings.HasPrefix(u.URI, "https://") {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.URI, nil)
		if err != nil {
			return nil, err
		}
		resp, err := u.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unit/json: %s: status %s", u.URI, resp.Status)
		}
		return resp.Body, nil
	}

	path := strings.TrimPrefix(u.URI, "file://")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}
