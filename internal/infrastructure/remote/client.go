package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/evertweb/programajava-sub002/internal/application/dto"
	"github.com/evertweb/programajava-sub002/internal/domain"
	pkgjwt "github.com/evertweb/programajava-sub002/pkg/jwt"
	"github.com/evertweb/programajava-sub002/pkg/logger"
)

// maxErrorBody límite de lectura del cuerpo de una respuesta de error.
const maxErrorBody = 64 << 10

// TokenSource devuelve el bearer token a enviar; nil = sin autenticación.
type TokenSource func() (string, error)

// ServiceToken firma un token de servicio nuevo por llamada.
func ServiceToken(secret, service, issuer string, ttl time.Duration) TokenSource {
	return func() (string, error) {
		return pkgjwt.GenerateService(secret, service, issuer, ttl)
	}
}

// Options configuración común de los clientes remotos.
type Options struct {
	BaseURL    string
	Timeout    time.Duration // por intento
	Retry      RetryPolicy
	Token      TokenSource
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Client cliente JSON sobre net/http que traduce estados HTTP a errores de dominio.
type Client struct {
	name    string
	baseURL string
	timeout time.Duration
	retry   RetryPolicy
	token   TokenSource
	http    *http.Client
	log     *logger.Logger
}

func newClient(name string, opts Options) *Client {
	c := &Client{
		name:    name,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		retry:   opts.Retry,
		token:   opts.Token,
		http:    opts.HTTPClient,
		log:     opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	if c.retry.MaxAttempts == 0 {
		c.retry = DefaultRetryPolicy()
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	c.log = c.log.Named("remote_" + name)
	return c
}

// Criterios de reintento.
var (
	retryTransient   = domain.IsTransient
	retryUnavailable = func(err error) bool { return errors.Is(err, domain.ErrServiceUnavailable) }
)

// do ejecuta la petición con reintentos mientras retryable(err) sea verdadero.
func (c *Client) do(ctx context.Context, method, path string, in, out any, retryable func(error) bool) error {
	attempt := 0
	op := func() error {
		attempt++
		err := c.once(ctx, method, path, in, out)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		c.log.Warn().Err(err).
			Str("method", method).
			Str("path", path).
			Int("attempt", attempt).
			Msg("llamada remota fallida")
		return err
	}
	return backoff.Retry(op, c.retry.backOff(ctx))
}

func (c *Client) once(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: serializar request: %w", c.name, err)
		}
		body = bytes.NewReader(b)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: crear request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		tok, err := c.token()
		if err != nil {
			return fmt.Errorf("%s: firmar token de servicio: %w", c.name, err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decodificar respuesta: %w", c.name, err)
		}
		return nil
	}
	return c.statusError(resp)
}

// transportError clasifica fallas de red: timeout → ErrServiceTimeout, resto → ErrServiceUnavailable.
// La cancelación del llamador se devuelve tal cual.
func (c *Client) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s: %v", domain.ErrServiceTimeout, c.name, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrServiceUnavailable, c.name, err)
}

// statusError traduce el estado HTTP y el código del cuerpo a un error de dominio.
func (c *Client) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body dto.ErrorResponse
	_ = json.Unmarshal(raw, &body)
	msg := body.Message
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = resp.Status
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel = domain.ErrInvalidInput
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = domain.ErrUnauthorized
	case http.StatusNotFound:
		switch body.Code {
		case dto.CodeProductNotFound:
			sentinel = domain.ErrProductNotFound
		case dto.CodeVehicleNotFound:
			sentinel = domain.ErrVehicleNotFound
		case dto.CodeSupplierNotFound:
			sentinel = domain.ErrSupplierNotFound
		default:
			sentinel = domain.ErrNotFound
		}
	case http.StatusConflict:
		switch body.Code {
		case dto.CodeInsufficientStock:
			sentinel = domain.ErrInsufficientStock
		case dto.CodeIntegrity:
			sentinel = domain.ErrIntegrity
		default:
			sentinel = domain.ErrConflict
		}
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		sentinel = domain.ErrServiceUnavailable
	case http.StatusGatewayTimeout:
		sentinel = domain.ErrServiceTimeout
	default:
		return fmt.Errorf("%s: estado inesperado %d: %s", c.name, resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: %s: %s", sentinel, c.name, msg)
}
