// Package schema maps the station-specific column headers of a CSV export onto
// the canonical reading fields.
package schema

import "github.com/JakeFAU/pcd-harvester/internal/station"

// Kind is the stored type of a canonical field.
type Kind string

// Field kinds.
const (
	KindTimestamp Kind = "timestamp"
	KindTimeOfDay Kind = "time_of_day"
	KindDecimal   Kind = "decimal"
	KindBoolean   Kind = "boolean"
)

// Field is one canonical field. Token is matched as a case-insensitive
// substring against export headers; Column is where the value is stored.
type Field struct {
	Token  string
	Column string
	Kind   Kind
}

// Canonical tokens for the two fields the importer handles specially.
const (
	TokenTimestamp = "DataHora"
	TokenTimeOfDay = "hora"
)

var fields = []Field{
	{Token: TokenTimestamp, Column: station.ColTimestamp, Kind: KindTimestamp},
	{Token: "Bateria", Column: station.ColBattery, Kind: KindDecimal},
	{Token: "ContAguaSolo100", Column: station.ColSoilWater100, Kind: KindDecimal},
	{Token: "ContAguaSolo200", Column: station.ColSoilWater200, Kind: KindDecimal},
	{Token: "ContAguaSolo400", Column: station.ColSoilWater400, Kind: KindDecimal},
	{Token: "CorrPSol", Column: station.ColSolarCurrent, Kind: KindBoolean},
	{Token: "DirVelVentoMax", Column: station.ColWindDirMax, Kind: KindDecimal},
	{Token: "dirVento", Column: station.ColWindDir, Kind: KindDecimal},
	{Token: "NivMare", Column: station.ColTideLevel, Kind: KindDecimal},
	{Token: TokenTimeOfDay, Column: station.ColTimeOfDay, Kind: KindTimeOfDay},
	{Token: "NivRegua", Column: station.ColGaugeLevel, Kind: KindDecimal},
	{Token: "Pluvio", Column: station.ColPrecipitation, Kind: KindDecimal},
	{Token: "PressaoAtm", Column: station.ColPressure, Kind: KindDecimal},
	{Token: "RadSolAcum", Column: station.ColSolarRadAccum, Kind: KindDecimal},
	{Token: "RadSolGlob", Column: station.ColSolarRadGlobal, Kind: KindDecimal},
	{Token: "TempAr", Column: station.ColAirTemp, Kind: KindDecimal},
	{Token: "TempMax", Column: station.ColMaxTemp, Kind: KindDecimal},
	{Token: "TempMin", Column: station.ColMinTemp, Kind: KindDecimal},
	{Token: "TempInt", Column: station.ColInternalTemp, Kind: KindDecimal},
	{Token: "TempSolo100", Column: station.ColSoilTemp100, Kind: KindDecimal},
	{Token: "TempSolo200", Column: station.ColSoilTemp200, Kind: KindDecimal},
	{Token: "TempSolo400", Column: station.ColSoilTemp400, Kind: KindDecimal},
	{Token: "UmidInt", Column: station.ColInternalHumidity, Kind: KindDecimal},
	{Token: "UmiRel", Column: station.ColRelHumidity, Kind: KindDecimal},
	{Token: "VelVento", Column: station.ColWindSpeed, Kind: KindDecimal},
	{Token: "VelVento10m", Column: station.ColWindSpeed10m, Kind: KindDecimal},
	{Token: "VelVentoMax", Column: station.ColWindSpeedMax, Kind: KindDecimal},
}

// Fields returns the canonical fields in declaration order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}
