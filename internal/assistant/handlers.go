package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultTraceCount = 50
	maxTraceCount     = 500
)

func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lab_context",
		Description: "Get the compact measurement context: source voltage v0, present capacitor voltage vt, discharge stopwatch t and capacitance c. These are the inputs to the leakage resistance formula R = t / (C * ln(v0/vt)).",
	}, s.handleLabContext)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lab_state",
		Description: "Get the full bench snapshot: circuit mode, voltage, stopwatch, electrical parameters and trace length.",
	}, s.handleLabState)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lab_trace",
		Description: "Get recent discharge readings (stopwatch seconds and measured volts), oldest first. Useful for checking the decay curve or fitting the time constant.",
	}, s.handleLabTrace)
}

func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         "lab://context",
		Name:        "lab-context",
		Description: "Live circuit measurement context (v0, vt, t, c) for the leakage resistance calculation.",
		MIMEType:    "application/json",
	}, s.handleContextResource)
}

func (s *Server) handleLabContext(ctx context.Context, req *sdk.CallToolRequest, args LabContextInput) (*sdk.CallToolResult, LabContextOutput, error) {
	c := s.bench.AssistantContext()
	return nil, LabContextOutput{
		SourceVoltageV: c.SourceVoltageV,
		VoltageV:       c.VoltageV,
		ElapsedS:       c.ElapsedS,
		CapacitanceF:   c.CapacitanceF,
	}, nil
}

func (s *Server) handleLabState(ctx context.Context, req *sdk.CallToolRequest, args LabStateInput) (*sdk.CallToolResult, LabStateOutput, error) {
	snap := s.bench.Snapshot()
	return nil, LabStateOutput{
		Mode:           string(snap.Mode),
		VoltageV:       snap.VoltageV,
		ElapsedS:       snap.ElapsedS,
		SourceVoltageV: snap.Parameters.SourceVoltageV,
		ResistanceOhm:  snap.Parameters.ResistanceOhm,
		CapacitanceF:   snap.Parameters.CapacitanceF,
		TimeConstantS:  snap.Parameters.TimeConstantS(),
		SampleCount:    snap.SampleCount,
	}, nil
}

func (s *Server) handleLabTrace(ctx context.Context, req *sdk.CallToolRequest, args LabTraceInput) (*sdk.CallToolResult, LabTraceOutput, error) {
	count := args.Count
	if count <= 0 {
		count = defaultTraceCount
	}
	if count > maxTraceCount {
		count = maxTraceCount
	}

	samples := s.bench.TraceTail(count)
	out := LabTraceOutput{
		Count:   len(samples),
		Samples: make([]TraceSample, len(samples)),
	}
	for i, sample := range samples {
		out.Samples[i] = TraceSample{TimeS: sample.TimeS, VoltageV: sample.VoltageV}
	}
	return nil, out, nil
}

func (s *Server) handleContextResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	data, err := json.Marshal(s.bench.AssistantContext())
	if err != nil {
		return nil, fmt.Errorf("encoding context: %w", err)
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      "lab://context",
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
