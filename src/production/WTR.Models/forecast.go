package wtrmodels

// DataStats counts the records at each forecasting stage.
type DataStats struct {
	TotalRecords int `json:"total_records"`
	CleanRecords int `json:"clean_records"`
	TrainRecords int `json:"train_records"`
	TestRecords  int `json:"test_records"`
}

// ForecastResult is produced per request and never stored.
type ForecastResult struct {
	DeviceID            string    `json:"device_id"`
	DeviceName          string    `json:"device_name"`
	PredictedPower      float64   `json:"predicted_power"`
	RMSE                float64   `json:"rmse"`
	AlgoUsed            string    `json:"algo_used"`
	MeterType           string    `json:"meter_type"`
	TariffPerKWh        float64   `json:"tariff_per_kwh"`
	// EstimatedHourlyCost is predicted_power / 1000 * tariff_per_kwh,
	// rounded half away from zero to two decimal places.
	EstimatedHourlyCost float64   `json:"estimated_hourly_cost"`
	DataStats           DataStats `json:"data_stats"`
	Message             string    `json:"message,omitempty"`
}
