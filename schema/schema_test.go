package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudienceSchema(t *testing.T) {
	cfg := Audience()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"month", "daypart", "demographic", "characteristic"}, cfg.DimensionKeys())
	assert.Equal(t, []string{"reach_imp", "grp_imp", "reach_pct", "avg_freq"}, cfg.MeasureKeys())
	assert.Equal(t, []string{"reach_imp", "grp_imp"}, cfg.AdditiveMeasureKeys())
}

func TestIsAdditive(t *testing.T) {
	cfg := Audience()
	assert.True(t, cfg.IsAdditive("reach_imp"))
	assert.True(t, cfg.IsAdditive("grp_imp"))
	assert.False(t, cfg.IsAdditive("reach_pct"))
	assert.False(t, cfg.IsAdditive("avg_freq"))
	assert.False(t, cfg.IsAdditive("unknown"))
}

func TestHasMeasure(t *testing.T) {
	cfg := Audience()
	assert.True(t, cfg.HasMeasure("avg_freq"))
	assert.False(t, cfg.HasMeasure("month"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "blank dimension key",
			cfg: Config{
				Name:       "bad",
				Dimensions: []DimensionMeta{{Key: "  "}},
			},
			wantErr: "blank dimension key",
		},
		{
			name: "blank measure key",
			cfg: Config{
				Name:     "bad",
				Measures: []MeasureMeta{{Key: ""}},
			},
			wantErr: "blank measure key",
		},
		{
			name: "duplicate dimension",
			cfg: Config{
				Name:       "bad",
				Dimensions: []DimensionMeta{{Key: "month"}, {Key: "month"}},
			},
			wantErr: `key "month"`,
		},
		{
			name: "key declared as dimension and measure",
			cfg: Config{
				Name:       "bad",
				Dimensions: []DimensionMeta{{Key: "reach"}},
				Measures:   []MeasureMeta{{Key: "reach"}},
			},
			wantErr: `key "reach"`,
		},
		{
			name: "valid",
			cfg: Config{
				Name:       "ok",
				Dimensions: []DimensionMeta{{Key: "month"}},
				Measures:   []MeasureMeta{{Key: "reach_imp", Additive: true}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
