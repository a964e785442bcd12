package renderer

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
)

// RenderStats summarises the accumulation since the last clear
type RenderStats struct {
	Width, Height      uint32
	Frames             int32         // dispatches since the last clear
	SamplesPerDispatch int32         // samples per pixel per dispatch
	TotalSamples       int64         // samples per pixel held in the target
	Clears             int           // target clears since start
	Elapsed            time.Duration // time since the last clear
	Dirty              bool
}

// FramesPerSecond returns dispatches per second since the last clear
func (s RenderStats) FramesPerSecond() float64 {
	if s.Elapsed <= 0 || s.Frames <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Elapsed.Seconds()
}

// SamplesPerSecond returns pixel samples traced per second since the last clear
func (s RenderStats) SamplesPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	pixels := float64(s.Width) * float64(s.Height)
	return pixels * float64(s.TotalSamples) / s.Elapsed.Seconds()
}

// WriteTable renders the statistics as a table
func (s RenderStats) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Resolution", fmt.Sprintf("%dx%d", s.Width, s.Height)})
	table.Append([]string{"Frames", fmt.Sprint(s.Frames)})
	table.Append([]string{"Samples/pixel", fmt.Sprint(s.TotalSamples)})
	table.Append([]string{"Elapsed", s.Elapsed.Round(time.Millisecond).String()})
	table.Append([]string{"Frames/s", fmt.Sprintf("%.2f", s.FramesPerSecond())})
	table.SetFooter([]string{"Samples/s", fmt.Sprintf("%.0f", s.SamplesPerSecond())})
	table.Render()
}
