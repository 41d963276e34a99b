package grpcserver

import (
	"context"

	"agentd/agent"
	"agentd/grpcserver/pb"
	loggerv2 "agentd/logger/v2"
)

// chunkPump forwards agent chunks to a server stream
type chunkPump struct {
	agent  *agent.Agent
	stream pb.AgentService_ProcessMessageStreamServer
	logger loggerv2.Logger
}

func newChunkPump(a *agent.Agent, stream pb.AgentService_ProcessMessageStreamServer, logger loggerv2.Logger) *chunkPump {
	return &chunkPump{agent: a, stream: stream, logger: logger}
}

// run streams one request. A failed Send cancels the request, but the chunk
// channel is always drained so the producer can finish and commit.
func (p *chunkPump) run(req *agent.Request) error {
	ctx, cancel := context.WithCancel(p.stream.Context())
	defer cancel()

	s, err := p.agent.ProcessMessageStream(ctx, req)
	if err != nil {
		return err
	}

	var sendErr error
	for chunk := range s.Chunks() {
		if sendErr != nil {
			continue
		}
		if err := p.stream.Send(fromChunk(chunk)); err != nil {
			sendErr = err
			p.logger.Debug("Failed to send chunk",
				loggerv2.Error(err),
				loggerv2.Int64("sequence", int64(chunk.Sequence)))
			cancel()
		}
	}

	if _, err := s.Wait(); err != nil {
		return err
	}
	return sendErr
}
