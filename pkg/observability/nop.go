package observability

type nopMeter struct{}

// NopMeter returns a Meter whose instruments discard every observation.
func NopMeter() Meter { return nopMeter{} }

func (nopMeter) Counter(string, ...MetricOpt) Counter     { return nopInstrument{} }
func (nopMeter) Histogram(string, ...MetricOpt) Histogram { return nopInstrument{} }
func (nopMeter) Gauge(string, ...MetricOpt) Gauge         { return nopInstrument{} }
func (nopMeter) Timer(string, ...MetricOpt) Timer         { return nopInstrument{} }

type nopInstrument struct{}

func (nopInstrument) Inc(float64, ...Label)     {}
func (nopInstrument) Observe(float64, ...Label) {}
func (nopInstrument) Set(float64, ...Label)     {}
func (nopInstrument) Add(float64, ...Label)     {}
func (nopInstrument) Start(...Label) func()     { return func() {} }
