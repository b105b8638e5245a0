package server

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/clearkeydrm/ckcli/internal/cenc"
	"github.com/clearkeydrm/ckcli/internal/crypto"
	"github.com/clearkeydrm/ckcli/internal/keystore"
	"github.com/clearkeydrm/ckcli/internal/logging"
	"github.com/clearkeydrm/ckcli/internal/models"
	"github.com/valyala/fasthttp"
)

const (
	HeaderKeyID           = "X-Key-Id"
	HeaderKey             = "X-Key"
	HeaderIV              = "X-IV"
	HeaderSubsamples      = "X-Subsamples"
	HeaderDecryptedLength = "X-Decrypted-Length"
	HeaderSamples         = "X-Samples"

	defaultMaxBodySize = 256 << 20
)

var errNoKey = errors.New("either X-Key-Id or X-Key is required")

// Server exposes the subsample decryptor and the MP4 decrypter over HTTP.
type Server struct {
	dec  *crypto.SubsampleDecryptor
	mp4  *cenc.Decrypter
	keys cenc.KeyResolver
	log  logging.Logger

	baseCtx context.Context
	srv     *fasthttp.Server
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithMaxBodySize limits request bodies to n bytes.
func WithMaxBodySize(n int) Option {
	return func(s *Server) {
		s.srv.MaxRequestBodySize = n
	}
}

// New creates a Server.
func New(dec *crypto.SubsampleDecryptor, mp4 *cenc.Decrypter, keys cenc.KeyResolver, opts ...Option) *Server {
	s := &Server{
		dec:     dec,
		mp4:     mp4,
		keys:    keys,
		log:     &logging.NullLogger{},
		baseCtx: context.Background(),
	}
	s.srv = &fasthttp.Server{
		Handler:            s.Handler,
		Name:               "ckcli",
		MaxRequestBodySize: defaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.log.Infof("decrypt service listening on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.baseCtx = ctx

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.srv.Shutdown(); err != nil {
			return err
		}
		return <-errCh
	}
}

// Handler routes a request.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		if !ctx.IsGet() {
			ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
			return
		}
		ctx.SetContentType("text/plain")
		ctx.SetBodyString("ok")
	case "/v1/decrypt":
		if !ctx.IsPost() {
			ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
			return
		}
		s.handleDecrypt(ctx)
	case "/v1/mp4":
		if !ctx.IsPost() {
			ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
			return
		}
		s.handleMP4(ctx)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func (s *Server) handleDecrypt(ctx *fasthttp.RequestCtx) {
	key, err := s.requestKey(ctx)
	if err != nil {
		s.fail(ctx, err)
		return
	}

	iv, err := hex.DecodeString(string(ctx.Request.Header.Peek(HeaderIV)))
	if err != nil {
		s.fail(ctx, fmt.Errorf("%w: %s: %v", crypto.ErrInvalidArgument, HeaderIV, err))
		return
	}
	if iv, err = crypto.PadIV(iv); err != nil {
		s.fail(ctx, err)
		return
	}

	body := ctx.PostBody()

	subsamples, err := crypto.ParseSubsamples(string(ctx.Request.Header.Peek(HeaderSubsamples)))
	if err != nil {
		s.fail(ctx, err)
		return
	}
	if subsamples == nil {
		subsamples = []crypto.Subsample{{Encrypted: uint32(len(body))}}
	}

	out, n, err := s.dec.Decrypt(key, iv, body, subsamples)
	if err != nil {
		s.fail(ctx, err)
		return
	}

	ctx.Response.Header.Set(HeaderDecryptedLength, strconv.Itoa(n))
	ctx.SetContentType("application/octet-stream")
	ctx.SetBody(out[:n])
}

func (s *Server) requestKey(ctx *fasthttp.RequestCtx) ([]byte, error) {
	if kidHex := ctx.Request.Header.Peek(HeaderKeyID); len(kidHex) > 0 {
		kid, err := models.ParseKeyID(string(kidHex))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", crypto.ErrInvalidArgument, err)
		}

		key, err := s.keys.Get(kid)
		if err != nil {
			return nil, err
		}
		return key.Key, nil
	}

	if keyHex := ctx.Request.Header.Peek(HeaderKey); len(keyHex) > 0 {
		key, err := hex.DecodeString(string(keyHex))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", crypto.ErrInvalidArgument, HeaderKey, err)
		}
		return key, nil
	}

	return nil, fmt.Errorf("%w: %v", crypto.ErrInvalidArgument, errNoKey)
}

func (s *Server) handleMP4(ctx *fasthttp.RequestCtx) {
	var out bytes.Buffer

	report, err := s.mp4.Decrypt(s.baseCtx, bytes.NewReader(ctx.PostBody()), &out)
	if err != nil {
		s.fail(ctx, err)
		return
	}

	ctx.Response.Header.Set(HeaderSamples, strconv.Itoa(report.Samples()))
	ctx.SetContentType("video/mp4")
	ctx.SetBody(out.Bytes())
}

// fail writes err as a JSON error body with the mapped status code.
func (s *Server) fail(ctx *fasthttp.RequestCtx, err error) {
	status := StatusFor(err)

	s.log.WithField("path", string(ctx.Path())).
		WithField("status", status).
		WithError(err).
		Warn("request failed")

	body, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{err.Error()})

	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// StatusFor maps an error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, keystore.ErrKeyNotFound):
		return fasthttp.StatusNotFound
	case errors.Is(err, crypto.ErrCipherUnavailable):
		return fasthttp.StatusServiceUnavailable
	case errors.Is(err, crypto.ErrInvalidArgument),
		errors.Is(err, crypto.ErrOutOfBounds),
		errors.Is(err, cenc.ErrUnsupportedScheme),
		errors.Is(err, cenc.ErrMissingSampleInfo),
		errors.Is(err, cenc.ErrNotFragmented),
		errors.Is(err, cenc.ErrMalformedInput):
		return fasthttp.StatusBadRequest
	default:
		return fasthttp.StatusInternalServerError
	}
}
