package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEnqueueJobRequest_Validate(t *testing.T) {
	validID := uuid.New().String()

	tests := []struct {
		name    string
		req     EnqueueJobRequest
		wantErr bool
	}{
		{
			name: "valid request",
			req:  EnqueueJobRequest{ConfigurationID: validID, SeedTopic: "A valid topic"},
		},
		{
			name: "valid with labels",
			req: EnqueueJobRequest{
				ConfigurationID: validID,
				SeedTopic:       "A valid topic",
				Categories:      []string{"tech"},
				Tags:            []string{"go"},
			},
		},
		{
			name:    "missing configuration ID",
			req:     EnqueueJobRequest{SeedTopic: "A valid topic"},
			wantErr: true,
		},
		{
			name:    "configuration ID not a UUID",
			req:     EnqueueJobRequest{ConfigurationID: "abc", SeedTopic: "A valid topic"},
			wantErr: true,
		},
		{
			name:    "missing seed topic",
			req:     EnqueueJobRequest{ConfigurationID: validID},
			wantErr: true,
		},
		{
			name:    "seed topic too short",
			req:     EnqueueJobRequest{ConfigurationID: validID, SeedTopic: "ab"},
			wantErr: true,
		},
		{
			name:    "empty category",
			req:     EnqueueJobRequest{ConfigurationID: validID, SeedTopic: "A valid topic", Categories: []string{""}},
			wantErr: true,
		},
		{
			name:    "empty tag",
			req:     EnqueueJobRequest{ConfigurationID: validID, SeedTopic: "A valid topic", Tags: []string{""}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpdateJobRequest_Validate(t *testing.T) {
	short := "ab"
	good := "A better topic"

	tests := []struct {
		name    string
		req     UpdateJobRequest
		wantErr bool
	}{
		{
			name: "empty update is valid",
			req:  UpdateJobRequest{},
		},
		{
			name: "valid topic",
			req:  UpdateJobRequest{SeedTopic: &good},
		},
		{
			name:    "topic too short",
			req:     UpdateJobRequest{SeedTopic: &short},
			wantErr: true,
		},
		{
			name:    "empty tag",
			req:     UpdateJobRequest{Tags: []string{""}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateConfigurationRequest_Validate(t *testing.T) {
	valid := CreateConfigurationRequest{
		Name:            "Default blog",
		ChapterCount:    5,
		WordsPerChapter: 800,
	}

	tests := []struct {
		name    string
		mutate  func(r *CreateConfigurationRequest)
		wantErr bool
	}{
		{name: "valid minimal", mutate: func(*CreateConfigurationRequest) {}},
		{
			name: "valid full",
			mutate: func(r *CreateConfigurationRequest) {
				r.ModelTier = "advanced"
				r.ImageSize = "1792x1024"
				r.ImageQuality = "hd"
				r.AssetProvider = "wordpress"
				r.PhaseTimeoutSeconds = 300
				r.SiteURL = "https://example.com"
			},
		},
		{
			name:    "missing name",
			mutate:  func(r *CreateConfigurationRequest) { r.Name = "" },
			wantErr: true,
		},
		{
			name:    "zero chapters",
			mutate:  func(r *CreateConfigurationRequest) { r.ChapterCount = 0 },
			wantErr: true,
		},
		{
			name:    "too many chapters",
			mutate:  func(r *CreateConfigurationRequest) { r.ChapterCount = 21 },
			wantErr: true,
		},
		{
			name:    "words per chapter below minimum",
			mutate:  func(r *CreateConfigurationRequest) { r.WordsPerChapter = 50 },
			wantErr: true,
		},
		{
			name:    "unknown model tier",
			mutate:  func(r *CreateConfigurationRequest) { r.ModelTier = "turbo" },
			wantErr: true,
		},
		{
			name:    "unknown image size",
			mutate:  func(r *CreateConfigurationRequest) { r.ImageSize = "512x512" },
			wantErr: true,
		},
		{
			name:    "unknown asset provider",
			mutate:  func(r *CreateConfigurationRequest) { r.AssetProvider = "s3" },
			wantErr: true,
		},
		{
			name:    "phase timeout too short",
			mutate:  func(r *CreateConfigurationRequest) { r.PhaseTimeoutSeconds = 5 },
			wantErr: true,
		},
		{
			name:    "site URL not a URL",
			mutate:  func(r *CreateConfigurationRequest) { r.SiteURL = "not a url" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTokenRequest_Validate(t *testing.T) {
	assert.Error(t, (&TokenRequest{}).Validate())
	assert.NoError(t, (&TokenRequest{Secret: "s3cret"}).Validate())
}
