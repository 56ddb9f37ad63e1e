package station

import (
	"fmt"
	"time"
)

// Storage column names of the station_readings table.
const (
	ColTimestamp        = "data_hora_gmt"
	ColTimeOfDay        = "hora"
	ColBattery          = "bateria_volts"
	ColSoilWater100     = "cont_agua_solo_100_m3"
	ColSoilWater200     = "cont_agua_solo_200_m3"
	ColSoilWater400     = "cont_agua_solo_400_m3"
	ColSolarCurrent     = "corr_p_sol_logico"
	ColWindDirMax       = "dir_vel_vento_max_onv"
	ColWindDir          = "dir_vento_onv"
	ColTideLevel        = "niv_mare_m"
	ColGaugeLevel       = "niv_regua_m"
	ColPrecipitation    = "pluvio_mm"
	ColPressure         = "pressao_atm_mb"
	ColSolarRadAccum    = "rad_sol_acum_mjm2"
	ColSolarRadGlobal   = "rad_sol_glob_wm2"
	ColAirTemp          = "temp_ar_c"
	ColMaxTemp          = "temp_max_c"
	ColMinTemp          = "temp_min_c"
	ColInternalTemp     = "temp_int_c"
	ColSoilTemp100      = "temp_solo_100_c"
	ColSoilTemp200      = "temp_solo_200_c"
	ColSoilTemp400      = "temp_solo_400_c"
	ColInternalHumidity = "umid_int_pct"
	ColRelHumidity      = "umi_rel_pct"
	ColWindSpeed        = "vel_vento_ms"
	ColWindSpeed10m     = "vel_vento_10m_ms"
	ColWindSpeedMax     = "vel_vento_max_ms"
)

// ReadingColumns lists the station_readings value columns in insert order,
// after station_id.
var ReadingColumns = []string{
	ColTimestamp,
	ColTimeOfDay,
	ColBattery,
	ColSoilWater100,
	ColSoilWater200,
	ColSoilWater400,
	ColSolarCurrent,
	ColWindDirMax,
	ColWindDir,
	ColTideLevel,
	ColGaugeLevel,
	ColPrecipitation,
	ColPressure,
	ColSolarRadAccum,
	ColSolarRadGlobal,
	ColAirTemp,
	ColMaxTemp,
	ColMinTemp,
	ColInternalTemp,
	ColSoilTemp100,
	ColSoilTemp200,
	ColSoilTemp400,
	ColInternalHumidity,
	ColRelHumidity,
	ColWindSpeed,
	ColWindSpeed10m,
	ColWindSpeedMax,
}

// Reading is one typed sensor sample belonging to a station. Every
// measurement is nullable; a field missing from a station's export stays nil.
type Reading struct {
	StationID int        `json:"station_id"`
	Timestamp *time.Time `json:"data_hora_gmt"`
	TimeOfDay *TimeOfDay `json:"hora"`

	Battery          *float64 `json:"bateria_volts"`
	SoilWater100     *float64 `json:"cont_agua_solo_100_m3"`
	SoilWater200     *float64 `json:"cont_agua_solo_200_m3"`
	SoilWater400     *float64 `json:"cont_agua_solo_400_m3"`
	SolarCurrent     *bool    `json:"corr_p_sol_logico"`
	WindDirMax       *float64 `json:"dir_vel_vento_max_onv"`
	WindDir          *float64 `json:"dir_vento_onv"`
	TideLevel        *float64 `json:"niv_mare_m"`
	GaugeLevel       *float64 `json:"niv_regua_m"`
	Precipitation    *float64 `json:"pluvio_mm"`
	Pressure         *float64 `json:"pressao_atm_mb"`
	SolarRadAccum    *float64 `json:"rad_sol_acum_mjm2"`
	SolarRadGlobal   *float64 `json:"rad_sol_glob_wm2"`
	AirTemp          *float64 `json:"temp_ar_c"`
	MaxTemp          *float64 `json:"temp_max_c"`
	MinTemp          *float64 `json:"temp_min_c"`
	InternalTemp     *float64 `json:"temp_int_c"`
	SoilTemp100      *float64 `json:"temp_solo_100_c"`
	SoilTemp200      *float64 `json:"temp_solo_200_c"`
	SoilTemp400      *float64 `json:"temp_solo_400_c"`
	InternalHumidity *float64 `json:"umid_int_pct"`
	RelHumidity      *float64 `json:"umi_rel_pct"`
	WindSpeed        *float64 `json:"vel_vento_ms"`
	WindSpeed10m     *float64 `json:"vel_vento_10m_ms"`
	WindSpeedMax     *float64 `json:"vel_vento_max_ms"`
}

// SetDecimal assigns a numeric measurement by storage column.
func (r *Reading) SetDecimal(column string, v *float64) error {
	ref := r.decimalRef(column)
	if ref == nil {
		return fmt.Errorf("column %q is not a decimal measurement", column)
	}
	*ref = v
	return nil
}

// Decimal returns a numeric measurement by storage column.
func (r *Reading) Decimal(column string) (*float64, bool) {
	ref := r.decimalRef(column)
	if ref == nil {
		return nil, false
	}
	return *ref, true
}

func (r *Reading) decimalRef(column string) **float64 {
	switch column {
	case ColBattery:
		return &r.Battery
	case ColSoilWater100:
		return &r.SoilWater100
	case ColSoilWater200:
		return &r.SoilWater200
	case ColSoilWater400:
		return &r.SoilWater400
	case ColWindDirMax:
		return &r.WindDirMax
	case ColWindDir:
		return &r.WindDir
	case ColTideLevel:
		return &r.TideLevel
	case ColGaugeLevel:
		return &r.GaugeLevel
	case ColPrecipitation:
		return &r.Precipitation
	case ColPressure:
		return &r.Pressure
	case ColSolarRadAccum:
		return &r.SolarRadAccum
	case ColSolarRadGlobal:
		return &r.SolarRadGlobal
	case ColAirTemp:
		return &r.AirTemp
	case ColMaxTemp:
		return &r.MaxTemp
	case ColMinTemp:
		return &r.MinTemp
	case ColInternalTemp:
		return &r.InternalTemp
	case ColSoilTemp100:
		return &r.SoilTemp100
	case ColSoilTemp200:
		return &r.SoilTemp200
	case ColSoilTemp400:
		return &r.SoilTemp400
	case ColInternalHumidity:
		return &r.InternalHumidity
	case ColRelHumidity:
		return &r.RelHumidity
	case ColWindSpeed:
		return &r.WindSpeed
	case ColWindSpeed10m:
		return &r.WindSpeed10m
	case ColWindSpeedMax:
		return &r.WindSpeedMax
	default:
		return nil
	}
}
