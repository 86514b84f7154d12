package openmotics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/omhome/internal/coordinator"
	"github.com/joshp123/omhome/internal/resource"
)

// MetricsCollector exports the published snapshot. It never calls the
// gateway; scrapes read whatever the coordinator last published.
type MetricsCollector struct {
	coord *coordinator.Coordinator

	outputOn        *prometheus.GaugeVec
	outputLevel     *prometheus.GaugeVec
	shutterPosition *prometheus.GaugeVec
	sensorValue     *prometheus.GaugeVec
	energyValue     *prometheus.GaugeVec
	unitTemperature *prometheus.GaugeVec
	unitSetpoint    *prometheus.GaugeVec
	unitOn          *prometheus.GaugeVec
	lastSuccess     prometheus.Gauge
	success         prometheus.Gauge
}

func NewMetricsCollector(coord *coordinator.Coordinator) *MetricsCollector {
	labels := []string{"id", "name"}
	return &MetricsCollector{
		coord: coord,
		outputOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "omhome_openmotics_output_on_bool",
			Help: "Output state (1=on, 0=off)",
		}, append(labels, "output_type")),
		outputLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "omhome_openmotics_output_level_percent",
			Help: "Output dim level",
		}, labels),
		shutterPosition: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "omhome_openmotics_shutter_open_percent",
			Help: "Shutter opening (100=open, 0=closed)",
		}, labels),
		sensorValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "omhome_openmotics_sensor_value",
			Help: "Sensor reading per physical quantity",
		}, append(labels, "quantity")),
		energyValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "omhome_openmotics_energy_value",
			Help: "Energy sensor reading per quantity (power W, voltage V, current A)",
		}, append(labels, "quantity")),
		unitTemperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "omhome_openmotics_thermostat_temperature_celsius",
			Help: "Current temperature per thermostat unit",
		}, labels),
		unitSetpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "omhome_openmotics_thermostat_setpoint_celsius",
			Help: "Target temperature per thermostat unit",
		}, labels),
		unitOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "omhome_openmotics_thermostat_on_bool",
			Help: "Thermostat unit state (1=on, 0=off)",
		}, labels),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "omhome_openmotics_last_success_timestamp_seconds",
			Help: "Last fully successful refresh (epoch seconds)",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "omhome_openmotics_scrape_success",
			Help: "Last refresh success (1=ok, 0=error)",
		}),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.outputOn.Describe(ch)
	c.outputLevel.Describe(ch)
	c.shutterPosition.Describe(ch)
	c.sensorValue.Describe(ch)
	c.energyValue.Describe(ch)
	c.unitTemperature.Describe(ch)
	c.unitSetpoint.Describe(ch)
	c.unitOn.Describe(ch)
	c.lastSuccess.Describe(ch)
	c.success.Describe(ch)
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.coord.Data()

	c.outputOn.Reset()
	c.outputLevel.Reset()
	c.shutterPosition.Reset()
	c.sensorValue.Reset()
	c.energyValue.Reset()
	c.unitTemperature.Reset()
	c.unitSetpoint.Reset()
	c.unitOn.Reset()

	for _, o := range snap.Outputs {
		if !resource.IsProvisioned(o.Name) {
			continue
		}
		id := strconv.Itoa(o.ID)
		c.outputOn.WithLabelValues(id, o.Name, o.OutputType).Set(boolToFloat(o.Status.On))
		if o.Has(resource.CapabilityRange) {
			c.outputLevel.WithLabelValues(id, o.Name).Set(float64(o.Status.Value))
		}
	}
	for _, s := range snap.Shutters {
		if !resource.IsProvisioned(s.Name) || s.Status.Position == nil {
			continue
		}
		c.shutterPosition.WithLabelValues(strconv.Itoa(s.ID), s.Name).Set(float64(resource.InvertPosition(*s.Status.Position)))
	}
	for _, s := range snap.Sensors {
		if !resource.IsProvisioned(s.Name) {
			continue
		}
		for _, q := range s.Quantities() {
			if v := s.Status.Reading(q); v != nil {
				c.sensorValue.WithLabelValues(strconv.Itoa(s.ID), s.Name, q).Set(*v)
			}
		}
	}
	for _, e := range snap.EnergySensors {
		if !resource.IsProvisioned(e.Name) {
			continue
		}
		id := strconv.Itoa(e.ID)
		setIf(c.energyValue.WithLabelValues(id, e.Name, "power"), e.Status.Power)
		setIf(c.energyValue.WithLabelValues(id, e.Name, "voltage"), e.Status.Voltage)
		setIf(c.energyValue.WithLabelValues(id, e.Name, "current"), e.Status.Current)
	}
	for _, u := range snap.ThermostatUnits {
		if !resource.IsProvisioned(u.Name) {
			continue
		}
		id := strconv.Itoa(u.ID)
		setIf(c.unitTemperature.WithLabelValues(id, u.Name), u.Status.CurrentTemperature)
		setIf(c.unitSetpoint.WithLabelValues(id, u.Name), u.Status.Setpoint)
		c.unitOn.WithLabelValues(id, u.Name).Set(boolToFloat(u.Status.State != resource.ThermostatOff))
	}

	if c.coord.LastUpdateSuccess() {
		c.success.Set(1)
		c.lastSuccess.Set(float64(c.coord.LastUpdated().Unix()))
	} else {
		c.success.Set(0)
	}
	c.collectAll(ch)
}

func (c *MetricsCollector) collectAll(ch chan<- prometheus.Metric) {
	c.outputOn.Collect(ch)
	c.outputLevel.Collect(ch)
	c.shutterPosition.Collect(ch)
	c.sensorValue.Collect(ch)
	c.energyValue.Collect(ch)
	c.unitTemperature.Collect(ch)
	c.unitSetpoint.Collect(ch)
	c.unitOn.Collect(ch)
	c.lastSuccess.Collect(ch)
	c.success.Collect(ch)
}

func setIf(g prometheus.Gauge, v *float64) {
	if v != nil {
		g.Set(*v)
	}
}

func boolToFloat(value bool) float64 {
	if value {
		return 1
	}
	return 0
}
