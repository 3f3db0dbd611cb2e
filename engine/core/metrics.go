package core

const AVG_COUNT = 30

// Metrics keeps a rolling frame-time average and a frames-per-second counter.
type Metrics struct {
	frameAvgCounter    int
	msTimes            [AVG_COUNT]float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Update records the duration of one frame, in seconds.
func (m *Metrics) Update(frameElapsedTime float64) {
	frameMS := frameElapsedTime * 1000.0
	m.msTimes[m.frameAvgCounter] = frameMS
	if m.frameAvgCounter == AVG_COUNT-1 {
		m.msAvg = 0
		for i := 0; i < AVG_COUNT; i++ {
			m.msAvg += m.msTimes[i]
		}
		m.msAvg /= float64(AVG_COUNT)
	}
	m.frameAvgCounter = (m.frameAvgCounter + 1) % AVG_COUNT

	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	m.frames++
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

func (m *Metrics) FrameTime() float64 {
	return m.msAvg
}

func (m *Metrics) Frame() (float64, float64) {
	return m.fps, m.msAvg
}
