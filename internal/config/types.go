// Package config loads and validates the controller's YAML
// configuration: audio capture, processor tuning, DMX devices,
// fixture types, lights, per-light mapping programs, and the network
// surface.
package config

// Config is the root configuration document.
type Config struct {
	Capture    CaptureConfig               `yaml:"capture" validate:"required"`
	Processors ProcessorsConfig            `yaml:"processors"`
	DMXDevices []DMXDeviceConfig           `yaml:"dmx_devices" validate:"required,min=1,dive"`
	LightTypes map[string]LightTypeConfig  `yaml:"light_types" validate:"required,min=1"`
	Lights     []LightConfig               `yaml:"lights" validate:"required,min=1,dive"`
	Mapping    map[string]LightMappingYAML `yaml:"mapping"`
	Network    NetworkConfig               `yaml:"network"`
}

// CaptureConfig parameterizes the audio input device.
type CaptureConfig struct {
	Device     string `yaml:"device"`
	SampleRate int    `yaml:"sample_rate" validate:"required,gt=0"`
	ChunkSize  int    `yaml:"chunk_size" validate:"required,gt=0"`
	FPS        int    `yaml:"fps" validate:"required,gt=0"`
}

// ProcessorsConfig tunes the smoothing/beat/pitch/idle analysis stages.
type ProcessorsConfig struct {
	Smoothing SmoothingYAML `yaml:"smoothing"`
	Idle      IdleYAML      `yaml:"idle"`
}

// SmoothingYAML mirrors audio.SmoothingConfig's tunable fields.
type SmoothingYAML struct {
	RollingHistory     int     `yaml:"rolling_history"`
	FFTBins            int     `yaml:"fft_bins"`
	MinFrequency       float64 `yaml:"min_frequency"`
	MaxFrequency       float64 `yaml:"max_frequency"`
	MinVolumeThreshold float64 `yaml:"min_volume_threshold"`
}

// IdleYAML mirrors audio.IdleConfig's tunable fields.
type IdleYAML struct {
	Threshold float64 `yaml:"threshold"`
}

// DMXDeviceConfig describes one output sink a light can address.
type DMXDeviceConfig struct {
	Name    string `yaml:"name" validate:"required"`
	Kind    string `yaml:"kind" validate:"required,oneof=udp sink vsink"` // udp | sink | vsink
	Address string `yaml:"address"`                                      // required for kind=udp
}

// LightTypeConfig is the YAML shape of a fixture type definition.
type LightTypeConfig struct {
	Channels  int                      `yaml:"channels" validate:"required,gt=0"`
	Functions map[string]FunctionYAML  `yaml:"functions" validate:"required,min=1"`
}

// FunctionYAML is the YAML shape of one fixture function.
type FunctionYAML struct {
	Channel int                  `yaml:"channel" validate:"required,gt=0"`
	Invert  bool                 `yaml:"invert,omitempty"`
	Type    string               `yaml:"type,omitempty"` // range | boolean | static
	Map     map[string][2]int    `yaml:"map,omitempty"`
	Maps    []ConditionalMapYAML `yaml:"maps,omitempty"`
	Reset   *ResetYAML           `yaml:"reset,omitempty"`
	Speed   *SpeedYAML           `yaml:"speed,omitempty"`
}

// ConditionalMapYAML is one entry of a static function's Maps list.
type ConditionalMapYAML struct {
	WhenProperty string            `yaml:"when_property"`
	WhenLabel    string            `yaml:"when_label"`
	Map          map[string][2]int `yaml:"map"`
}

// ResetYAML describes a function's reset-on-write rule.
type ResetYAML struct {
	Always bool   `yaml:"always,omitempty"`
	Range  [2]int `yaml:"range,omitempty"`
}

// SpeedYAML describes a speed-encoded function's timing.
type SpeedYAML struct {
	SlowestMS float64 `yaml:"slowest_ms" validate:"required,gt=0"`
	FastestMS float64 `yaml:"fastest_ms" validate:"required,gt=0"`
}

// LightConfig places one fixture instance on a device at a start channel.
type LightConfig struct {
	Name         string `yaml:"name" validate:"required"`
	Type         string `yaml:"type" validate:"required"`
	Device       string `yaml:"device" validate:"required"`
	StartChannel int    `yaml:"start_channel" validate:"required,gt=0"`
}

// LightMappingYAML is the YAML shape of one light's mapping program.
type LightMappingYAML struct {
	Program      []DirectiveYAML          `yaml:"program,omitempty"`
	Cooldown     map[string]float64       `yaml:"cooldown,omitempty"`
	Links        map[string]LinkYAML      `yaml:"links,omitempty"`
	StateEffects []StateEffectYAML        `yaml:"state_effects,omitempty"`
}

// DirectiveYAML is the YAML shape of one Program entry. Range is
// polymorphic: the bare string "scaled" multiplies the computed value
// by the trigger value (or by scale_src's quantity); a [lo, hi] pair
// clamps it to that range instead.
type DirectiveYAML struct {
	Trigger   string  `yaml:"trigger" validate:"required,oneof=onset beat frequency"`
	Bins      any     `yaml:"bins,omitempty"` // bare int, or list of ints and [lo,hi] pairs
	Aggregate string  `yaml:"aggregate,omitempty"`
	Threshold float64 `yaml:"threshold,omitempty"`
	Range     any     `yaml:"range,omitempty"` // "scaled" | [lo,hi] pair
	ScaleSrc  string  `yaml:"scale_src,omitempty" validate:"omitempty,oneof=frequency"`
	Function  string  `yaml:"function" validate:"required"`
	Value     any     `yaml:"value,omitempty"` // absent | "random" | literal int
	Duration  float64 `yaml:"duration,omitempty"`
	KeepState bool    `yaml:"keep_state,omitempty"`
}

// LinkYAML is the YAML shape of one light's link to another.
type LinkYAML struct {
	Invert []string `yaml:"invert,omitempty"`
}

// StateEffectYAML is the YAML shape of one prioritized state effect.
type StateEffectYAML struct {
	Name      string                   `yaml:"name" validate:"required"`
	When      string                   `yaml:"when" validate:"required"`
	Effects   map[string]EffectSpecYAML `yaml:"effects" validate:"required,min=1"`
	Reset     []string                 `yaml:"reset,omitempty"`
	Priority  int                      `yaml:"priority,omitempty"`
}

// EffectSpecYAML is the YAML shape of one property's sub-effect.
type EffectSpecYAML struct {
	Start     any     `yaml:"start"` // "random" | literal int
	End       any     `yaml:"end"`   // "random" | literal int
	Duration  float64 `yaml:"duration,omitempty"`
	KeepState bool    `yaml:"keep_state,omitempty"`
}

// NetworkConfig configures the optional external surfaces.
type NetworkConfig struct {
	Broker  BrokerConfig  `yaml:"broker"`
	Ops     OpsConfig     `yaml:"ops"`
	MQTT    *MQTTConfig   `yaml:"mqtt,omitempty"`
	Modbus  *ModbusConfig `yaml:"modbus,omitempty"`
}

// BrokerConfig configures the TCP/UDP broker. Port 0 disables it.
type BrokerConfig struct {
	Port          int    `yaml:"port,omitempty"`
	DiscoveryPort int    `yaml:"discovery_port,omitempty"`
	ServiceName   string `yaml:"service_name,omitempty"`
}

// OpsConfig configures the /healthz, /metrics, /api/status surface.
type OpsConfig struct {
	Port int `yaml:"port,omitempty"`
}

// MQTTConfig configures the optional read-only MQTT mirror.
type MQTTConfig struct {
	Broker      string `yaml:"broker" validate:"required"`
	ClientID    string `yaml:"client_id,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// ModbusConfig configures the optional read-only Modbus TCP mirror.
type ModbusConfig struct {
	Port int `yaml:"port" validate:"required,gt=0"`
}
