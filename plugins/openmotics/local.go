package openmotics

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/joshp123/omhome/internal/config"
	"github.com/joshp123/omhome/internal/resource"
)

// LocalClient talks to a gateway on the local network through its form-POST
// API. Every action carries a session token obtained from login.
type LocalClient struct {
	baseURL  string
	host     string
	username string
	password string
	log      *logrus.Entry

	httpClient *http.Client
	logins     singleflight.Group

	mu    sync.Mutex
	token string
}

func NewLocalClient(cfg config.LocalConfig, log *logrus.Entry) (*LocalClient, error) {
	host := strings.TrimSpace(cfg.IPAddress)
	if host == "" {
		return nil, fmt.Errorf("ip_address is required")
	}
	if cfg.Name == "" || cfg.Password == "" {
		return nil, fmt.Errorf("name and password are required")
	}
	port := cfg.Port
	if port == 0 {
		port = config.DefaultLocalPort
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !cfg.VerifySSL} //nolint:gosec // gateways ship self-signed certificates

	return &LocalClient{
		baseURL:    fmt.Sprintf("https://%s:%d", host, port),
		host:       host,
		username:   cfg.Name,
		password:   cfg.Password,
		log:        log.WithField("gateway", host),
		httpClient: &http.Client{Timeout: 15 * time.Second, Transport: transport},
	}, nil
}

func (c *LocalClient) Mode() config.Mode { return config.ModeLocal }

// Supports reports false for lights and energy sensors, which the local API
// does not list separately.
func (c *LocalClient) Supports(kind resource.Kind) bool {
	return kind != resource.KindLight && kind != resource.KindEnergySensor
}

// Installation describes the gateway itself; local gateways have no
// installation id.
func (c *LocalClient) Installation(ctx context.Context) (resource.Installation, error) {
	body, err := c.exec(ctx, "get_version", nil)
	if err != nil {
		return resource.Installation{}, err
	}
	var reply struct {
		Version string `json:"version"`
		Gateway string `json:"gateway"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return resource.Installation{}, fmt.Errorf("decode version: %w", err)
	}
	return resource.Installation{
		Name:         c.host,
		GatewayModel: "gateway " + reply.Gateway,
		Version:      reply.Version,
	}, nil
}

func (c *LocalClient) Outputs(ctx context.Context) ([]resource.Output, error) {
	configs, err := c.exec(ctx, "get_output_configurations", nil)
	if err != nil {
		return nil, err
	}
	status, err := c.exec(ctx, "get_output_status", nil)
	if err != nil {
		return nil, err
	}
	return legacyOutputs(configs, status)
}

// Lights is empty: local gateways expose lights as outputs.
func (c *LocalClient) Lights(context.Context) ([]resource.Light, error) {
	return []resource.Light{}, nil
}

func (c *LocalClient) Shutters(ctx context.Context) ([]resource.Shutter, error) {
	configs, err := c.exec(ctx, "get_shutter_configurations", nil)
	if err != nil {
		return nil, err
	}
	status, err := c.exec(ctx, "get_shutter_status", nil)
	if err != nil {
		return nil, err
	}
	return legacyShutters(configs, status)
}

func (c *LocalClient) Sensors(ctx context.Context) ([]resource.Sensor, error) {
	configs, err := c.exec(ctx, "get_sensor_configurations", nil)
	if err != nil {
		return nil, err
	}
	temperature, err := c.exec(ctx, "get_sensor_temperature_status", nil)
	if err != nil {
		return nil, err
	}
	humidity, err := c.exec(ctx, "get_sensor_humidity_status", nil)
	if err != nil {
		return nil, err
	}
	brightness, err := c.exec(ctx, "get_sensor_brightness_status", nil)
	if err != nil {
		return nil, err
	}
	return legacySensors(configs, temperature, humidity, brightness)
}

// EnergySensors is empty: the local API has no energy sensor listing.
func (c *LocalClient) EnergySensors(context.Context) ([]resource.EnergySensor, error) {
	return []resource.EnergySensor{}, nil
}

func (c *LocalClient) ThermostatGroups(ctx context.Context) ([]resource.ThermostatGroup, error) {
	body, err := c.exec(ctx, "get_thermostat_status", nil)
	if err != nil {
		return nil, err
	}
	return legacyThermostatGroups(body)
}

func (c *LocalClient) ThermostatUnits(ctx context.Context) ([]resource.ThermostatUnit, error) {
	body, err := c.exec(ctx, "get_thermostat_status", nil)
	if err != nil {
		return nil, err
	}
	return legacyThermostatUnits(body)
}

func (c *LocalClient) GroupActions(ctx context.Context) ([]resource.GroupAction, error) {
	body, err := c.exec(ctx, "get_group_action_configurations", nil)
	if err != nil {
		return nil, err
	}
	return legacyGroupActions(body)
}

// Command maps a command onto the legacy actions.
func (c *LocalClient) Command(ctx context.Context, cmd resource.Command) (resource.Result, error) {
	action, form, err := c.localCommand(ctx, cmd)
	if err != nil {
		return resource.Result{}, err
	}
	body, err := c.exec(ctx, action, form)
	if err != nil {
		return resource.Result{}, err
	}
	return ParseResult(cmd.String(), body)
}

func (c *LocalClient) localCommand(ctx context.Context, cmd resource.Command) (string, url.Values, error) {
	id := strconv.Itoa(cmd.ID)
	unsupported := fmt.Errorf("%s: %w", cmd, ErrUnsupportedCommand)

	switch cmd.Kind {
	case resource.KindOutput:
		form := url.Values{"id": {id}}
		switch cmd.Op {
		case resource.OpTurnOn:
			form.Set("is_on", "true")
			if cmd.Number != nil {
				form.Set("dimmer", strconv.Itoa(int(*cmd.Number)))
			}
		case resource.OpTurnOff:
			form.Set("is_on", "false")
		case resource.OpToggle:
			on, err := c.outputOn(ctx, cmd.ID)
			if err != nil {
				return "", nil, err
			}
			form.Set("is_on", strconv.FormatBool(!on))
		default:
			return "", nil, unsupported
		}
		return "set_output", form, nil

	case resource.KindShutter:
		form := url.Values{"id": {id}}
		switch cmd.Op {
		case resource.OpMoveUp:
			return "do_shutter_up", form, nil
		case resource.OpMoveDown:
			return "do_shutter_down", form, nil
		case resource.OpStop:
			return "do_shutter_stop", form, nil
		case resource.OpChangePosition:
			if cmd.Number == nil {
				return "", nil, unsupported
			}
			form.Set("position", strconv.Itoa(int(*cmd.Number)))
			return "do_shutter_goto", form, nil
		}
		return "", nil, unsupported

	case resource.KindThermostatUnit:
		switch cmd.Op {
		case resource.OpSetTemperature:
			if cmd.Number == nil {
				return "", nil, unsupported
			}
			return "set_current_setpoint", url.Values{
				"thermostat":  {id},
				"temperature": {strconv.FormatFloat(*cmd.Number, 'f', 1, 64)},
			}, nil
		case resource.OpSetState, resource.OpSetPreset:
			status, err := c.thermostatStatus(ctx)
			if err != nil {
				return "", nil, err
			}
			form := status.modeForm()
			if cmd.Op == resource.OpSetState {
				form.Set("thermostat_on", strconv.FormatBool(cmd.Text == resource.ThermostatOn))
			} else if err := applyLegacyPreset(form, cmd.Text); err != nil {
				return "", nil, err
			}
			return "set_thermostat_mode", form, nil
		}
		return "", nil, unsupported

	case resource.KindThermostatGroup:
		if cmd.Op != resource.OpSetMode {
			return "", nil, unsupported
		}
		status, err := c.thermostatStatus(ctx)
		if err != nil {
			return "", nil, err
		}
		form := status.modeForm()
		form.Set("cooling_mode", strconv.FormatBool(cmd.Text == resource.ModeCooling))
		form.Set("cooling_on", "true")
		return "set_thermostat_mode", form, nil

	case resource.KindGroupAction:
		if cmd.Op != resource.OpTrigger {
			return "", nil, unsupported
		}
		return "do_group_action", url.Values{"group_action_id": {id}}, nil
	}
	return "", nil, unsupported
}

func (s legacyThermostatStatus) modeForm() url.Values {
	return url.Values{
		"thermostat_on": {strconv.FormatBool(s.ThermostatsOn)},
		"automatic":     {strconv.FormatBool(s.Automatic)},
		"setpoint":      {strconv.Itoa(s.Setpoint)},
	}
}

func applyLegacyPreset(form url.Values, preset string) error {
	switch preset {
	case resource.PresetAuto:
		form.Set("automatic", "true")
		form.Set("setpoint", "0")
	case resource.PresetAway:
		form.Set("automatic", "false")
		form.Set("setpoint", strconv.Itoa(legacySetpointAway))
	case resource.PresetVacation:
		form.Set("automatic", "false")
		form.Set("setpoint", strconv.Itoa(legacySetpointVacation))
	case resource.PresetParty:
		form.Set("automatic", "false")
		form.Set("setpoint", strconv.Itoa(legacySetpointParty))
	default:
		return fmt.Errorf("preset %q: %w", preset, ErrUnsupportedCommand)
	}
	return nil
}

func (c *LocalClient) outputOn(ctx context.Context, id int) (bool, error) {
	body, err := c.exec(ctx, "get_output_status", url.Values{"id": {strconv.Itoa(id)}})
	if err != nil {
		return false, err
	}
	var statuses legacyStatusReply[legacyOutputStatus]
	if err := json.Unmarshal(body, &statuses); err != nil {
		return false, fmt.Errorf("decode output status: %w", err)
	}
	for _, s := range statuses.Status {
		if s.ID == id {
			return s.Status == 1, nil
		}
	}
	return false, fmt.Errorf("output %d not reported by gateway", id)
}

func (c *LocalClient) thermostatStatus(ctx context.Context) (legacyThermostatStatus, error) {
	body, err := c.exec(ctx, "get_thermostat_status", nil)
	if err != nil {
		return legacyThermostatStatus{}, err
	}
	return decodeLegacyThermostats(body)
}

// Check logs in with the configured credentials.
func (c *LocalClient) Check(ctx context.Context) error {
	c.clearToken("")
	_, err := c.login(ctx)
	return err
}

// exec runs an action, logging in first when needed. A 401 clears the token,
// logs in again and retries exactly once.
func (c *LocalClient) exec(ctx context.Context, action string, form url.Values) ([]byte, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, action, form, token)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		return body, err
	}

	c.log.WithField("action", action).Debug("session token rejected, logging in again")
	c.clearToken(token)
	token, err = c.currentToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.post(ctx, action, form, token)
}

func (c *LocalClient) currentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	return c.login(ctx)
}

func (c *LocalClient) login(ctx context.Context) (string, error) {
	v, err, _ := c.logins.Do("login", func() (any, error) {
		body, err := c.post(ctx, "login", url.Values{
			"username": {c.username},
			"password": {c.password},
		}, "")
		if err != nil {
			return "", err
		}
		var reply struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(body, &reply); err != nil || reply.Token == "" {
			return "", &AuthenticationError{Op: "login", Err: fmt.Errorf("no token in login response")}
		}
		c.mu.Lock()
		c.token = reply.Token
		c.mu.Unlock()
		return reply.Token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// clearToken drops the session token if it is still the one that failed.
func (c *LocalClient) clearToken(failed string) {
	c.mu.Lock()
	if failed == "" || c.token == failed {
		c.token = ""
	}
	c.mu.Unlock()
}

func (c *LocalClient) post(ctx context.Context, action string, form url.Values, token string) ([]byte, error) {
	data := url.Values{}
	for k, v := range form {
		data[k] = v
	}
	if token != "" {
		data.Set("token", token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+action, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{Op: action, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{Op: action, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(action, resp.StatusCode, body)
	}

	var reply struct {
		Success *bool  `json:"success"`
		Msg     string `json:"msg"`
	}
	if json.Unmarshal(body, &reply) == nil && reply.Success != nil && !*reply.Success {
		msg := reply.Msg
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &APIError{Op: action, Message: msg}
	}
	return body, nil
}
