package server

import (
	"context"

	"calllog_viewer/internal/mango"
)

type stubFetcher struct{}

func (stubFetcher) FetchList(ctx context.Context, p mango.ListParams) (*mango.ListResponse, error) {
	return &mango.ListResponse{TotalRows: "0"}, nil
}

func (stubFetcher) FetchRecording(ctx context.Context, record, partnershipID string) ([]byte, error) {
	return nil, nil
}
