package runpod_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tris077/Atomera/internal/artifacts"
	"github.com/tris077/Atomera/internal/config"
	"github.com/tris077/Atomera/internal/engine"
	"github.com/tris077/Atomera/internal/engine/runpod"
	"github.com/tris077/Atomera/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(baseURL string) config.RunPodConfig {
	return config.RunPodConfig{
		BaseURL:        baseURL,
		APIKey:         "rp_test_key",
		EndpointID:     "ep123",
		PollInterval:   10 * time.Millisecond,
		WaitTimeout:    500 * time.Millisecond,
		RequestTimeout: time.Second,
	}
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		Command:          "boltz",
		Accelerator:      "gpu",
		Devices:          1,
		DiffusionSamples: 1,
		UseMSAServer:     true,
	}
}

func newBackend(t *testing.T, baseURL string, recorder runpod.Recorder) (*runpod.Backend, *artifacts.Store) {
	t.Helper()
	art, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)
	return runpod.NewBackend(testConfig(baseURL), testEngineConfig(), art, recorder, testLogger()), art
}

func execute(t *testing.T, b *runpod.Backend, jobID uuid.UUID) (*models.RawResult, error) {
	t.Helper()
	return b.Execute(context.Background(), models.ExecutionInput{
		JobID: jobID.String(),
		Request: models.PredictionRequest{
			Protein: models.ProteinSequence{ID: "A", Sequence: "MKT"},
			Ligand:  models.LigandMolecule{ID: "B", SMILES: "CCO"},
		},
		Spec: []byte("version: 1\n"),
	}, func(float64) {})
}

func TestExecute_HappyPath(t *testing.T) {
	jobID := uuid.New()
	pose := base64.StdEncoding.EncodeToString([]byte("data_pose"))
	var polls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer rp_test_key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/ep123/run":
			var body struct {
				Input struct {
					JobID     string                   `json:"job_id"`
					InputYAML string                   `json:"input_yaml"`
					Request   models.PredictionRequest `json:"request_data"`
					Config    struct {
						Devices          int    `json:"devices"`
						Accelerator      string `json:"accelerator"`
						DiffusionSamples int    `json:"diffusion_samples"`
						UseMSAServer     bool   `json:"use_msa_server"`
					} `json:"config"`
				} `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, jobID.String(), body.Input.JobID)
			spec, err := base64.StdEncoding.DecodeString(body.Input.InputYAML)
			require.NoError(t, err)
			assert.Equal(t, "version: 1\n", string(spec))
			assert.Equal(t, "MKT", body.Input.Request.Protein.Sequence)
			assert.Equal(t, "CCO", body.Input.Request.Ligand.SMILES)
			assert.Equal(t, "gpu", body.Input.Config.Accelerator)
			assert.Equal(t, 1, body.Input.Config.Devices)
			assert.Equal(t, 1, body.Input.Config.DiffusionSamples)
			assert.True(t, body.Input.Config.UseMSAServer)
			fmt.Fprint(w, `{"id": "remote-1", "status": "IN_QUEUE"}`)
		case "/ep123/status/remote-1":
			switch polls.Add(1) {
			case 1:
				fmt.Fprint(w, `{"id": "remote-1", "status": "IN_QUEUE"}`)
			case 2:
				fmt.Fprint(w, `{"id": "remote-1", "status": "IN_PROGRESS"}`)
			default:
				out := map[string]any{
					"affinity_pred_value":         -8.9,
					"affinity_probability_binary": 0.95,
					"confidence_score":            0.91,
					"ptm":                         0.84,
					"iptm":                        0.8,
					"artifacts":                   map[string]string{"pose_model_0.cif": pose},
				}
				json.NewEncoder(w).Encode(map[string]any{
					"id": "remote-1", "status": "COMPLETED", "output": out,
				})
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	var recordedRemote string
	b, art := newBackend(t, srv.URL, func(_ context.Context, _ string, remoteID string) {
		recordedRemote = remoteID
	})

	raw, err := execute(t, b, jobID)
	require.NoError(t, err)

	assert.Equal(t, "remote-1", recordedRemote)
	assert.Equal(t, -8.9, *raw.AffinityPredValue)
	assert.Equal(t, 0.95, *raw.AffinityProbabilityBinary)
	assert.Equal(t, 0.91, *raw.ConfidenceScore)
	assert.Equal(t, []string{"pose_model_0.cif"}, raw.PoseFiles)

	data, err := art.ReadFile(jobID, "pose_model_0.cif")
	require.NoError(t, err)
	assert.Equal(t, []byte("data_pose"), data)
}

func TestExecute_DoubleEncodedOutput(t *testing.T) {
	inner, err := json.Marshal(map[string]any{"confidence_score": 0.7})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ep123/run":
			fmt.Fprint(w, `{"id": "remote-2", "status": "IN_QUEUE"}`)
		default:
			json.NewEncoder(w).Encode(map[string]any{
				"id": "remote-2", "status": "COMPLETED", "output": string(inner),
			})
		}
	}))
	defer srv.Close()

	b, _ := newBackend(t, srv.URL, nil)
	raw, err := execute(t, b, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0.7, *raw.ConfidenceScore)
	assert.Nil(t, raw.AffinityPredValue)
}

func TestExecute_SubmitWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "IN_QUEUE"}`)
	}))
	defer srv.Close()

	b, _ := newBackend(t, srv.URL, nil)
	_, err := execute(t, b, uuid.New())
	require.Error(t, err)
	assert.Equal(t, engine.FailureCommunication, engine.KindOf(err))
}

func TestExecute_RemoteJobFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ep123/run":
			fmt.Fprint(w, `{"id": "remote-3", "status": "IN_QUEUE"}`)
		default:
			fmt.Fprint(w, `{"id": "remote-3", "status": "FAILED", "error": "worker OOM"}`)
		}
	}))
	defer srv.Close()

	b, _ := newBackend(t, srv.URL, nil)
	_, err := execute(t, b, uuid.New())
	require.Error(t, err)
	assert.Equal(t, engine.FailureRemoteJob, engine.KindOf(err))
	assert.Contains(t, err.Error(), "worker OOM")
}

func TestExecute_WaitTimeoutCancelsRemote(t *testing.T) {
	var cancelled atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ep123/run":
			fmt.Fprint(w, `{"id": "remote-4", "status": "IN_QUEUE"}`)
		case "/ep123/cancel/remote-4":
			cancelled.Store(true)
			fmt.Fprint(w, `{"id": "remote-4", "status": "CANCELLED"}`)
		default:
			fmt.Fprint(w, `{"id": "remote-4", "status": "IN_PROGRESS"}`)
		}
	}))
	defer srv.Close()

	b, _ := newBackend(t, srv.URL, nil)
	_, err := execute(t, b, uuid.New())
	require.Error(t, err)
	assert.Equal(t, engine.FailureTimeout, engine.KindOf(err))
	assert.True(t, cancelled.Load())
}

func TestExecute_PollErrorsExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ep123/run":
			fmt.Fprint(w, `{"id": "remote-5", "status": "IN_QUEUE"}`)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	b, _ := newBackend(t, srv.URL, nil)
	_, err := execute(t, b, uuid.New())
	require.Error(t, err)
	assert.Equal(t, engine.FailureCommunication, engine.KindOf(err))
}

func TestExecute_CompletedWithoutOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ep123/run":
			fmt.Fprint(w, `{"id": "remote-6", "status": "IN_QUEUE"}`)
		default:
			fmt.Fprint(w, `{"id": "remote-6", "status": "COMPLETED"}`)
		}
	}))
	defer srv.Close()

	b, _ := newBackend(t, srv.URL, nil)
	_, err := execute(t, b, uuid.New())
	require.Error(t, err)
	assert.Equal(t, engine.FailureRemoteJob, engine.KindOf(err))
}

func TestExecute_RequestDiffusionSamplesOverride(t *testing.T) {
	var sent atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ep123/run":
			var body struct {
				Input struct {
					Config struct {
						DiffusionSamples int `json:"diffusion_samples"`
					} `json:"config"`
				} `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			sent.Store(int32(body.Input.Config.DiffusionSamples))
			fmt.Fprint(w, `{"id": "remote-7", "status": "IN_QUEUE"}`)
		default:
			json.NewEncoder(w).Encode(map[string]any{
				"id": "remote-7", "status": "COMPLETED",
				"output": map[string]any{"confidence_score": 0.8},
			})
		}
	}))
	defer srv.Close()

	b, _ := newBackend(t, srv.URL, nil)
	_, err := b.Execute(context.Background(), models.ExecutionInput{
		JobID: uuid.New().String(),
		Request: models.PredictionRequest{
			Protein:          models.ProteinSequence{ID: "A", Sequence: "MKT"},
			Ligand:           models.LigandMolecule{ID: "B", SMILES: "CCO"},
			DiffusionSamples: 4,
		},
		Spec: []byte("version: 1\n"),
	}, func(float64) {})
	require.NoError(t, err)
	assert.Equal(t, int32(4), sent.Load())
}

func TestExecute_AuxiliaryArtifactsStored(t *testing.T) {
	jobID := uuid.New()
	pose := base64.StdEncoding.EncodeToString([]byte("data_pose"))
	aux := base64.StdEncoding.EncodeToString([]byte(`{"confidence_score": 0.9}`))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ep123/run":
			fmt.Fprint(w, `{"id": "remote-8", "status": "IN_QUEUE"}`)
		default:
			json.NewEncoder(w).Encode(map[string]any{
				"id": "remote-8", "status": "COMPLETED",
				"output": map[string]any{
					"confidence_score": 0.9,
					"artifacts": map[string]string{
						"pose_model_0.cif":      pose,
						"confidence_input.json": aux,
					},
				},
			})
		}
	}))
	defer srv.Close()

	b, art := newBackend(t, srv.URL, nil)
	raw, err := execute(t, b, jobID)
	require.NoError(t, err)

	// Only structures count as poses, but the auxiliary file is kept too.
	assert.Equal(t, []string{"pose_model_0.cif"}, raw.PoseFiles)

	data, err := art.ReadFile(jobID, "confidence_input.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"confidence_score": 0.9}`), data)
}

func TestTerminalStatus(t *testing.T) {
	for _, s := range []string{runpod.StatusCompleted, runpod.StatusFailed, runpod.StatusCancelled, runpod.StatusTimedOut} {
		assert.True(t, runpod.TerminalStatus(s), s)
	}
	for _, s := range []string{runpod.StatusQueued, runpod.StatusInQueue, runpod.StatusInProgress} {
		assert.False(t, runpod.TerminalStatus(s), s)
	}
}
