package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// InputRecord is one value applied to a circuit input lane.
type InputRecord struct {
	Lane  int     `json:"lane"`
	Value float64 `json:"value"`
	T0    float64 `json:"t0"`
}

// OutputRecord is one decoded circuit output. Decoded is false when the
// output neuron did not fire twice; Error names a malformed signed readout.
type OutputRecord struct {
	Lane     int       `json:"lane"`
	Value    float64   `json:"value"`
	Decoded  bool      `json:"decoded"`
	Spikes   []float64 `json:"spikes"`
	Interval float64   `json:"interval,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type RunRecord struct {
	VersionedRecord
	ID           string         `json:"id"`
	Circuit      string         `json:"circuit"`
	CircuitSize  int            `json:"circuit_size,omitempty"`
	Engine       string         `json:"engine"`
	DT           float64        `json:"dt"`
	Duration     float64        `json:"duration"`
	Horizon      float64        `json:"horizon"`
	Tmin         float64        `json:"tmin"`
	Tcod         float64        `json:"tcod"`
	Inputs       []InputRecord  `json:"inputs"`
	RecallAt     *float64       `json:"recall_at,omitempty"`
	Outputs      []OutputRecord `json:"outputs"`
	SpikeCount   int            `json:"spike_count"`
	Processed    map[string]int `json:"processed"`
	Steps        int            `json:"steps"`
	CreatedAtUTC string         `json:"created_at_utc"`
}

// SpikeTrain is the spike history of one neuron in a stored run.
type SpikeTrain struct {
	NeuronUID string    `json:"neuron_uid"`
	Module    string    `json:"module"`
	Times     []float64 `json:"times"`
}

type SpikeTrains struct {
	VersionedRecord
	RunID  string       `json:"run_id"`
	Trains []SpikeTrain `json:"trains"`
}
