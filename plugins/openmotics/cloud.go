package openmotics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshp123/omhome/internal/config"
	"github.com/joshp123/omhome/internal/oauth"
	"github.com/joshp123/omhome/internal/rate"
	"github.com/joshp123/omhome/internal/resource"
)

// CloudClient talks to the OpenMotics v1.1 REST API.
type CloudClient struct {
	baseURL string
	oauth   *oauth.Manager
	log     *logrus.Entry

	httpClient *http.Client

	mu             sync.Mutex
	installationID int
}

func NewCloudClient(cfg config.CloudConfig, rates config.RateConfig, log *logrus.Entry) (*CloudClient, error) {
	manager, err := oauth.NewManager(OAuthDeclaration(cfg), cfg.ClientID, cfg.ClientSecret)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = config.DefaultCloudBaseURL
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &CloudClient{
		baseURL:        baseURL,
		oauth:          manager,
		log:            log.WithField("gateway", "cloud"),
		httpClient:     rate.NewLimiter(RatePolicy(rates)).Client(&http.Client{Timeout: 15 * time.Second}),
		installationID: cfg.InstallationID,
	}, nil
}

// Start keeps the access token fresh in the background.
func (c *CloudClient) Start(ctx context.Context) {
	c.oauth.StartWithInterval(ctx, 5*time.Minute)
}

func (c *CloudClient) Mode() config.Mode { return config.ModeCloud }

// Installations lists every installation the client credentials can reach.
func (c *CloudClient) Installations(ctx context.Context) ([]resource.Installation, error) {
	body, err := c.do(ctx, http.MethodGet, "/base/installations", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[resource.Installation](body)
}

// InstallationID returns the configured installation, or the only one the
// credentials can see.
func (c *CloudClient) InstallationID(ctx context.Context) (int, error) {
	c.mu.Lock()
	id := c.installationID
	c.mu.Unlock()
	if id > 0 {
		return id, nil
	}

	installations, err := c.Installations(ctx)
	if err != nil {
		return 0, err
	}
	if len(installations) == 0 {
		return 0, fmt.Errorf("no installations found for these credentials")
	}
	if len(installations) > 1 {
		labels := make([]string, 0, len(installations))
		for _, inst := range installations {
			if inst.Name != "" {
				labels = append(labels, fmt.Sprintf("%d (%s)", inst.ID, inst.Name))
				continue
			}
			labels = append(labels, fmt.Sprintf("%d", inst.ID))
		}
		return 0, fmt.Errorf("multiple installations found: %s (set installation_id)", strings.Join(labels, ", "))
	}

	c.mu.Lock()
	c.installationID = installations[0].ID
	c.mu.Unlock()
	return installations[0].ID, nil
}

// Installation returns the selected installation's details.
func (c *CloudClient) Installation(ctx context.Context) (resource.Installation, error) {
	id, err := c.InstallationID(ctx)
	if err != nil {
		return resource.Installation{}, err
	}
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/base/installations/%d", id), nil)
	if err != nil {
		return resource.Installation{}, err
	}
	var reply struct {
		Data *resource.Installation `json:"data"`
		resource.Installation
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return resource.Installation{}, fmt.Errorf("decode installation: %w", err)
	}
	if reply.Data != nil {
		return *reply.Data, nil
	}
	if reply.Installation.ID == 0 {
		reply.Installation.ID = id
	}
	return reply.Installation, nil
}

func (c *CloudClient) Outputs(ctx context.Context) ([]resource.Output, error) {
	body, err := c.list(ctx, "outputs")
	if err != nil {
		return nil, err
	}
	return decodeOutputs(body)
}

func (c *CloudClient) Lights(ctx context.Context) ([]resource.Light, error) {
	return listOf[resource.Light](ctx, c, "lights")
}

func (c *CloudClient) Shutters(ctx context.Context) ([]resource.Shutter, error) {
	return listOf[resource.Shutter](ctx, c, "shutters")
}

func (c *CloudClient) Sensors(ctx context.Context) ([]resource.Sensor, error) {
	return listOf[resource.Sensor](ctx, c, "sensors")
}

func (c *CloudClient) EnergySensors(ctx context.Context) ([]resource.EnergySensor, error) {
	return listOf[resource.EnergySensor](ctx, c, "energysensors")
}

func (c *CloudClient) ThermostatGroups(ctx context.Context) ([]resource.ThermostatGroup, error) {
	return listOf[resource.ThermostatGroup](ctx, c, "thermostats/groups")
}

func (c *CloudClient) ThermostatUnits(ctx context.Context) ([]resource.ThermostatUnit, error) {
	body, err := c.list(ctx, "thermostats/units")
	if err != nil {
		return nil, err
	}
	return decodeUnits(body)
}

func (c *CloudClient) GroupActions(ctx context.Context) ([]resource.GroupAction, error) {
	return listOf[resource.GroupAction](ctx, c, "groupactions")
}

func listOf[T any](ctx context.Context, c *CloudClient, path string) ([]T, error) {
	body, err := c.list(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeList[T](body)
}

func (c *CloudClient) list(ctx context.Context, path string) ([]byte, error) {
	id, err := c.InstallationID(ctx)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodGet, fmt.Sprintf("/base/installations/%d/%s", id, path), nil)
}

// Command issues one control call.
func (c *CloudClient) Command(ctx context.Context, cmd resource.Command) (resource.Result, error) {
	path, payload, err := cloudCommand(cmd)
	if err != nil {
		return resource.Result{}, err
	}
	id, err := c.InstallationID(ctx)
	if err != nil {
		return resource.Result{}, err
	}

	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/base/installations/%d/%s", id, path), payload)
	if err != nil {
		return resource.Result{}, err
	}
	return ParseResult(cmd.String(), body)
}

func cloudCommand(cmd resource.Command) (string, any, error) {
	base := ""
	switch cmd.Kind {
	case resource.KindOutput:
		base = fmt.Sprintf("outputs/%d", cmd.ID)
	case resource.KindLight:
		base = fmt.Sprintf("lights/%d", cmd.ID)
	case resource.KindShutter:
		base = fmt.Sprintf("shutters/%d", cmd.ID)
	case resource.KindThermostatUnit:
		base = fmt.Sprintf("thermostats/units/%d", cmd.ID)
	case resource.KindThermostatGroup:
		base = fmt.Sprintf("thermostats/groups/%d", cmd.ID)
	case resource.KindGroupAction:
		base = fmt.Sprintf("groupactions/%d", cmd.ID)
	default:
		return "", nil, fmt.Errorf("%s: %w", cmd, ErrUnsupportedCommand)
	}

	switch {
	case (cmd.Kind == resource.KindOutput || cmd.Kind == resource.KindLight) && cmd.Op == resource.OpTurnOn:
		if cmd.Number != nil {
			return base + "/turn_on", map[string]any{"value": int(*cmd.Number)}, nil
		}
		return base + "/turn_on", nil, nil
	case (cmd.Kind == resource.KindOutput || cmd.Kind == resource.KindLight) && cmd.Op == resource.OpTurnOff:
		return base + "/turn_off", nil, nil
	case (cmd.Kind == resource.KindOutput || cmd.Kind == resource.KindLight) && cmd.Op == resource.OpToggle:
		return base + "/toggle", nil, nil
	case cmd.Kind == resource.KindShutter && cmd.Op == resource.OpMoveUp:
		return base + "/up", nil, nil
	case cmd.Kind == resource.KindShutter && cmd.Op == resource.OpMoveDown:
		return base + "/down", nil, nil
	case cmd.Kind == resource.KindShutter && cmd.Op == resource.OpStop:
		return base + "/stop", nil, nil
	case cmd.Kind == resource.KindShutter && cmd.Op == resource.OpChangePosition && cmd.Number != nil:
		return base + "/change_position", map[string]any{"position": int(*cmd.Number)}, nil
	case cmd.Kind == resource.KindThermostatUnit && cmd.Op == resource.OpSetTemperature && cmd.Number != nil:
		return base + "/setpoint", map[string]any{"temperature": *cmd.Number}, nil
	case cmd.Kind == resource.KindThermostatUnit && cmd.Op == resource.OpSetState && cmd.Text != "":
		return base + "/state", map[string]any{"state": cmd.Text}, nil
	case cmd.Kind == resource.KindThermostatUnit && cmd.Op == resource.OpSetPreset && cmd.Text != "":
		return base + "/preset", map[string]any{"preset_mode": cmd.Text}, nil
	case cmd.Kind == resource.KindThermostatGroup && cmd.Op == resource.OpSetMode && cmd.Text != "":
		return base + "/mode", map[string]any{"mode": cmd.Text}, nil
	case cmd.Kind == resource.KindGroupAction && cmd.Op == resource.OpTrigger:
		return base + "/trigger", nil, nil
	}
	return "", nil, fmt.Errorf("%s: %w", cmd, ErrUnsupportedCommand)
}

// do runs one request. A 401 drops the rejected token and retries exactly once.
func (c *CloudClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	body, used, err := c.doOnce(ctx, method, path, payload)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) || used == "" {
		return body, err
	}

	c.log.WithField("path", path).Debug("access token rejected, fetching a new one")
	c.oauth.Invalidate(used)
	body, _, err = c.doOnce(ctx, method, path, payload)
	return body, err
}

// doOnce runs one request and returns the access token it was sent with.
func (c *CloudClient) doOnce(ctx context.Context, method, path string, payload any) ([]byte, string, error) {
	op := method + " " + path

	accessToken, err := c.oauth.AccessToken(ctx)
	if err != nil {
		var tokenErr *oauth.TokenError
		if errors.As(err, &tokenErr) && tokenErr.Unauthorized() {
			return nil, "", &AuthenticationError{Op: "token", Err: err}
		}
		return nil, "", &ConnectionError{Op: "token", Err: err}
	}

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, accessToken, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, accessToken, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, accessToken, &ConnectionError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, accessToken, &ConnectionError{Op: op, Err: err}
	}
	return body, accessToken, statusError(op, resp.StatusCode, body)
}

// statusError maps an HTTP status to the error taxonomy.
func statusError(op string, status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized:
		return &AuthenticationError{Op: op, Err: HTTPStatusError{Status: status, Body: string(body)}}
	case status == http.StatusServiceUnavailable:
		return &MaintenanceModeError{Op: op}
	case status >= 200 && status < 300:
		return nil
	}

	var reply struct {
		Error string `json:"_error"`
	}
	if json.Unmarshal(body, &reply) == nil && reply.Error != "" {
		return &APIError{Op: op, Status: status, Message: reply.Error}
	}
	return &ConnectionError{Op: op, Err: HTTPStatusError{Status: status, Body: string(body)}}
}
