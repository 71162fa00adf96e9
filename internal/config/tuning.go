package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema is flat so the same JSON can be used for startup
// configuration and for overrides written by the replay tooling.
type TuningConfig struct {
	// Detection colour ("red" or "blue")
	DetectColor *string `json:"detect_color,omitempty"`

	// Per-light shape filter
	LightFilter   *bool    `json:"light_filter,omitempty"`
	LightMinRatio *float64 `json:"light_min_ratio,omitempty"`
	LightMaxRatio *float64 `json:"light_max_ratio,omitempty"`
	LightMaxTilt  *float64 `json:"light_max_tilt,omitempty"`

	// Matcher params
	MinLightLengthRatio    *float64 `json:"min_light_length_ratio,omitempty"`
	MinSmallCenterDistance *float64 `json:"min_small_center_distance,omitempty"`
	MaxSmallCenterDistance *float64 `json:"max_small_center_distance,omitempty"`
	MinLargeCenterDistance *float64 `json:"min_large_center_distance,omitempty"`
	MaxLargeCenterDistance *float64 `json:"max_large_center_distance,omitempty"`
	MaxAngleDiff           *float64 `json:"max_angle_diff,omitempty"`
	MaxVerticalRatio       *float64 `json:"max_vertical_ratio,omitempty"`
	MinAspect              *float64 `json:"min_aspect,omitempty"`
	MaxAspect              *float64 `json:"max_aspect,omitempty"`
	OcclusionMargin        *float64 `json:"occlusion_margin,omitempty"`

	// Tracker params
	ConfirmThreshold *int     `json:"confirm_threshold,omitempty"`
	LossThreshold    *int     `json:"loss_threshold,omitempty"`
	MaxMatchDistance *float64 `json:"max_match_distance,omitempty"`
	ReferenceX       *float64 `json:"reference_x,omitempty"`
	ReferenceY       *float64 `json:"reference_y,omitempty"`

	// Estimator params
	FrameInterval      *string  `json:"frame_interval,omitempty"`       // duration string like "33ms"
	MaxPredictInterval *string  `json:"max_predict_interval,omitempty"` // duration string like "200ms"
	ProcessNoisePos    *float64 `json:"process_noise_pos,omitempty"`
	ProcessNoiseVel    *float64 `json:"process_noise_vel,omitempty"`
	MeasurementNoise   *float64 `json:"measurement_noise,omitempty"`
	InitialCovariance  *float64 `json:"initial_covariance,omitempty"`

	// Camera intrinsics used for aim bearings
	CameraFx *float64 `json:"camera_fx,omitempty"`
	CameraFy *float64 `json:"camera_fy,omitempty"`
	CameraCx *float64 `json:"camera_cx,omitempty"`
	CameraCy *float64 `json:"camera_cy,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Every getter then falls back to its built-in default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/aim/l4tracker/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.DetectColor != nil {
		switch strings.ToLower(strings.TrimSpace(*c.DetectColor)) {
		case "red", "blue":
		default:
			return fmt.Errorf("detect_color must be \"red\" or \"blue\", got %q", *c.DetectColor)
		}
	}

	if c.LightMinRatio != nil && c.LightMaxRatio != nil && *c.LightMinRatio >= *c.LightMaxRatio {
		return fmt.Errorf("light_min_ratio (%f) must be below light_max_ratio (%f)", *c.LightMinRatio, *c.LightMaxRatio)
	}

	if c.MinLightLengthRatio != nil {
		if *c.MinLightLengthRatio < 0 || *c.MinLightLengthRatio > 1 {
			return fmt.Errorf("min_light_length_ratio must be between 0 and 1, got %f", *c.MinLightLengthRatio)
		}
	}

	// Window ordering is checked on the effective values so a partial
	// override cannot invert a window against its default bound.
	if c.GetMinSmallCenterDistance() > c.GetMaxSmallCenterDistance() {
		return fmt.Errorf("small center distance window is inverted: [%f, %f]",
			c.GetMinSmallCenterDistance(), c.GetMaxSmallCenterDistance())
	}
	if c.GetMinLargeCenterDistance() > c.GetMaxLargeCenterDistance() {
		return fmt.Errorf("large center distance window is inverted: [%f, %f]",
			c.GetMinLargeCenterDistance(), c.GetMaxLargeCenterDistance())
	}
	if c.GetMaxSmallCenterDistance() >= c.GetMinLargeCenterDistance() &&
		c.GetMaxLargeCenterDistance() >= c.GetMinSmallCenterDistance() {
		return fmt.Errorf("small and large center distance windows overlap")
	}
	if c.GetMinAspect() > c.GetMaxAspect() {
		return fmt.Errorf("aspect band is inverted: [%f, %f]", c.GetMinAspect(), c.GetMaxAspect())
	}

	if c.ConfirmThreshold != nil && *c.ConfirmThreshold < 1 {
		return fmt.Errorf("confirm_threshold must be at least 1, got %d", *c.ConfirmThreshold)
	}
	if c.LossThreshold != nil && *c.LossThreshold < 1 {
		return fmt.Errorf("loss_threshold must be at least 1, got %d", *c.LossThreshold)
	}
	if c.MaxMatchDistance != nil && *c.MaxMatchDistance <= 0 {
		return fmt.Errorf("max_match_distance must be positive, got %f", *c.MaxMatchDistance)
	}

	if c.FrameInterval != nil && *c.FrameInterval != "" {
		d, err := time.ParseDuration(*c.FrameInterval)
		if err != nil {
			return fmt.Errorf("invalid frame_interval '%s': %w", *c.FrameInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("frame_interval must be positive, got %s", d)
		}
	}
	if c.MaxPredictInterval != nil && *c.MaxPredictInterval != "" {
		if _, err := time.ParseDuration(*c.MaxPredictInterval); err != nil {
			return fmt.Errorf("invalid max_predict_interval '%s': %w", *c.MaxPredictInterval, err)
		}
	}

	if c.MeasurementNoise != nil && *c.MeasurementNoise <= 0 {
		return fmt.Errorf("measurement_noise must be positive, got %f", *c.MeasurementNoise)
	}
	if c.ProcessNoisePos != nil && *c.ProcessNoisePos < 0 {
		return fmt.Errorf("process_noise_pos must be non-negative, got %f", *c.ProcessNoisePos)
	}
	if c.ProcessNoiseVel != nil && *c.ProcessNoiseVel < 0 {
		return fmt.Errorf("process_noise_vel must be non-negative, got %f", *c.ProcessNoiseVel)
	}

	return nil
}

// GetDetectColor returns the normalised detect_color value or the default.
func (c *TuningConfig) GetDetectColor() string {
	if c.DetectColor == nil || *c.DetectColor == "" {
		return "red"
	}
	return strings.ToLower(strings.TrimSpace(*c.DetectColor))
}

// GetLightFilter returns the light_filter value or the default.
func (c *TuningConfig) GetLightFilter() bool {
	if c.LightFilter == nil {
		return true
	}
	return *c.LightFilter
}

// GetLightMinRatio returns the light_min_ratio value or the default.
func (c *TuningConfig) GetLightMinRatio() float64 {
	if c.LightMinRatio == nil {
		return 0.1
	}
	return *c.LightMinRatio
}

// GetLightMaxRatio returns the light_max_ratio value or the default.
func (c *TuningConfig) GetLightMaxRatio() float64 {
	if c.LightMaxRatio == nil {
		return 0.4
	}
	return *c.LightMaxRatio
}

// GetLightMaxTilt returns the light_max_tilt value (degrees) or the default.
func (c *TuningConfig) GetLightMaxTilt() float64 {
	if c.LightMaxTilt == nil {
		return 40
	}
	return *c.LightMaxTilt
}

// GetMinLightLengthRatio returns the min_light_length_ratio value or the default.
func (c *TuningConfig) GetMinLightLengthRatio() float64 {
	if c.MinLightLengthRatio == nil {
		return 0.7
	}
	return *c.MinLightLengthRatio
}

// GetMinSmallCenterDistance returns the min_small_center_distance value or the default.
func (c *TuningConfig) GetMinSmallCenterDistance() float64 {
	if c.MinSmallCenterDistance == nil {
		return 0.8
	}
	return *c.MinSmallCenterDistance
}

// GetMaxSmallCenterDistance returns the max_small_center_distance value or the default.
func (c *TuningConfig) GetMaxSmallCenterDistance() float64 {
	if c.MaxSmallCenterDistance == nil {
		return 2.8
	}
	return *c.MaxSmallCenterDistance
}

// GetMinLargeCenterDistance returns the min_large_center_distance value or the default.
func (c *TuningConfig) GetMinLargeCenterDistance() float64 {
	if c.MinLargeCenterDistance == nil {
		return 3.2
	}
	return *c.MinLargeCenterDistance
}

// GetMaxLargeCenterDistance returns the max_large_center_distance value or the default.
func (c *TuningConfig) GetMaxLargeCenterDistance() float64 {
	if c.MaxLargeCenterDistance == nil {
		return 5.5
	}
	return *c.MaxLargeCenterDistance
}

// GetMaxAngleDiff returns the max_angle_diff value (degrees) or the default.
func (c *TuningConfig) GetMaxAngleDiff() float64 {
	if c.MaxAngleDiff == nil {
		return 10
	}
	return *c.MaxAngleDiff
}

// GetMaxVerticalRatio returns the max_vertical_ratio value or the default.
func (c *TuningConfig) GetMaxVerticalRatio() float64 {
	if c.MaxVerticalRatio == nil {
		return 0.7
	}
	return *c.MaxVerticalRatio
}

// GetMinAspect returns the min_aspect value or the default.
func (c *TuningConfig) GetMinAspect() float64 {
	if c.MinAspect == nil {
		return 0.8
	}
	return *c.MinAspect
}

// GetMaxAspect returns the max_aspect value or the default.
func (c *TuningConfig) GetMaxAspect() float64 {
	if c.MaxAspect == nil {
		return 5.5
	}
	return *c.MaxAspect
}

// GetOcclusionMargin returns the occlusion_margin value (pixels) or the default.
func (c *TuningConfig) GetOcclusionMargin() float64 {
	if c.OcclusionMargin == nil {
		return 5
	}
	return *c.OcclusionMargin
}

// GetConfirmThreshold returns the confirm_threshold value or the default.
func (c *TuningConfig) GetConfirmThreshold() int {
	if c.ConfirmThreshold == nil {
		return 3
	}
	return *c.ConfirmThreshold
}

// GetLossThreshold returns the loss_threshold value or the default.
func (c *TuningConfig) GetLossThreshold() int {
	if c.LossThreshold == nil {
		return 5
	}
	return *c.LossThreshold
}

// GetMaxMatchDistance returns the max_match_distance value (pixels) or the default.
func (c *TuningConfig) GetMaxMatchDistance() float64 {
	if c.MaxMatchDistance == nil {
		return 100
	}
	return *c.MaxMatchDistance
}

// GetReferenceX returns the reference_x value or the default (1280x720 centre).
func (c *TuningConfig) GetReferenceX() float64 {
	if c.ReferenceX == nil {
		return 640
	}
	return *c.ReferenceX
}

// GetReferenceY returns the reference_y value or the default (1280x720 centre).
func (c *TuningConfig) GetReferenceY() float64 {
	if c.ReferenceY == nil {
		return 360
	}
	return *c.ReferenceY
}

// GetFrameInterval parses and returns the FrameInterval as a time.Duration.
func (c *TuningConfig) GetFrameInterval() time.Duration {
	const def = time.Second / 30
	if c.FrameInterval == nil || *c.FrameInterval == "" {
		return def
	}
	d, err := time.ParseDuration(*c.FrameInterval)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetMaxPredictInterval parses and returns the MaxPredictInterval as a time.Duration.
func (c *TuningConfig) GetMaxPredictInterval() time.Duration {
	const def = 200 * time.Millisecond
	if c.MaxPredictInterval == nil || *c.MaxPredictInterval == "" {
		return def
	}
	d, err := time.ParseDuration(*c.MaxPredictInterval)
	if err != nil {
		return def
	}
	return d
}

// GetProcessNoisePos returns the process_noise_pos value or the default.
func (c *TuningConfig) GetProcessNoisePos() float64 {
	if c.ProcessNoisePos == nil {
		return 0.1
	}
	return *c.ProcessNoisePos
}

// GetProcessNoiseVel returns the process_noise_vel value or the default.
func (c *TuningConfig) GetProcessNoiseVel() float64 {
	if c.ProcessNoiseVel == nil {
		return 0.5
	}
	return *c.ProcessNoiseVel
}

// GetMeasurementNoise returns the measurement_noise value or the default.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return 5.0
	}
	return *c.MeasurementNoise
}

// GetInitialCovariance returns the initial_covariance value or the default.
func (c *TuningConfig) GetInitialCovariance() float64 {
	if c.InitialCovariance == nil {
		return 0.1
	}
	return *c.InitialCovariance
}

// GetCameraFx returns the camera_fx value or the default.
func (c *TuningConfig) GetCameraFx() float64 {
	if c.CameraFx == nil {
		return 1000
	}
	return *c.CameraFx
}

// GetCameraFy returns the camera_fy value or the default.
func (c *TuningConfig) GetCameraFy() float64 {
	if c.CameraFy == nil {
		return 1000
	}
	return *c.CameraFy
}

// GetCameraCx returns the camera_cx value or the default.
func (c *TuningConfig) GetCameraCx() float64 {
	if c.CameraCx == nil {
		return 640
	}
	return *c.CameraCx
}

// GetCameraCy returns the camera_cy value or the default.
func (c *TuningConfig) GetCameraCy() float64 {
	if c.CameraCy == nil {
		return 360
	}
	return *c.CameraCy
}
