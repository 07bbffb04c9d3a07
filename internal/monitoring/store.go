// Package monitoring forwards computed results to the rest of the Agrisa
// platform: per-image index means go to the farm_monitoring_data table
// through the RDS Data API and one EventBridge event is published per
// processed request.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	rdsdatatypes "github.com/aws/aws-sdk-go-v2/service/rdsdata/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/agrisa/satellite-data-service/internal/assemble"
)

// DataAPI is the subset of the RDS Data API client used to write rows.
type DataAPI interface {
	BatchExecuteStatement(ctx context.Context, in *rdsdata.BatchExecuteStatementInput, opts ...func(*rdsdata.Options)) (*rdsdata.BatchExecuteStatementOutput, error)
}

// Data quality labels derived from scene cloud cover.
const (
	QualityGood       = "good"
	QualityAcceptable = "acceptable"
	QualityPoor       = "poor"
)

// Quality grades a cloud cover percentage.
func Quality(cloudCover float64) string {
	switch {
	case cloudCover < 10:
		return QualityGood
	case cloudCover < 30:
		return QualityAcceptable
	default:
		return QualityPoor
	}
}

// Row is one farm_monitoring_data record.
type Row struct {
	ID                   uuid.UUID
	FarmID               uuid.UUID
	ParameterName        string
	MeasuredValue        float64
	Unit                 string
	MeasurementTimestamp int64
	ComponentData        map[string]any
	DataQuality          string
	MeasurementSource    string
	CloudCoverPercentage float64
}

// Rows converts the records of a vegetation-index response. Records
// without an acquisition date cannot be placed on the time series and are
// skipped.
func Rows(farmID uuid.UUID, parameter string, images []assemble.ImageRecord, newID func() uuid.UUID) []Row {
	rows := make([]Row, 0, len(images))
	for _, img := range images {
		st := img.Statistics()
		if st == nil || img.AcquisitionDate == nil {
			continue
		}
		t, err := time.Parse("2006-01-02", *img.AcquisitionDate)
		if err != nil {
			continue
		}
		source, name := "Sentinel-2", parameter
		if img.RVIStatistics != nil {
			source, name = "Sentinel-1", "RVI"
		}
		components := map[string]any{
			"image_id":    img.ImageID,
			"image_index": img.ImageIndex,
			"median":      st.Median.Value,
			"std_dev":     st.StdDev.Value,
			"min":         st.Min.Value,
			"max":         st.Max.Value,
			"thumbnail":   img.Outputs.Thumbnail,
		}
		if img.IndexStrategy != nil {
			components["strategy"] = img.IndexStrategy.Strategy
		}
		rows = append(rows, Row{
			ID:                   newID(),
			FarmID:               farmID,
			ParameterName:        name,
			MeasuredValue:        st.Mean.Value,
			Unit:                 "index",
			MeasurementTimestamp: t.Unix(),
			ComponentData:        components,
			DataQuality:          Quality(img.CloudCover.Value),
			MeasurementSource:    source,
			CloudCoverPercentage: img.CloudCover.Value,
		})
	}
	return rows
}

// Store writes monitoring rows to Aurora through the Data API.
type Store struct {
	client     DataAPI
	clusterARN string
	secretARN  string
	database   string
}

func NewStore(client DataAPI, clusterARN, secretARN, database string) *Store {
	return &Store{
		client:     client,
		clusterARN: clusterARN,
		secretARN:  secretARN,
		database:   database,
	}
}

const insertSQL = `INSERT INTO farm_monitoring_data (id, farm_id, parameter_name, measured_value, unit, measurement_timestamp, component_data, data_quality, measurement_source, cloud_cover_percentage, created_at)
		VALUES (:id::uuid, :farm_id::uuid, :parameter_name, :measured_value, :unit, :measurement_timestamp, :component_data::jsonb, :data_quality, :measurement_source, :cloud_cover_percentage, NOW())`

// Insert writes rows in a single batch statement.
func (s *Store) Insert(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	sets := make([][]rdsdatatypes.SqlParameter, len(rows))
	for i, r := range rows {
		components := "{}"
		if len(r.ComponentData) > 0 {
			b, _ := json.Marshal(r.ComponentData)
			components = string(b)
		}
		sets[i] = []rdsdatatypes.SqlParameter{
			{Name: aws.String("id"), Value: &rdsdatatypes.FieldMemberStringValue{Value: r.ID.String()}},
			{Name: aws.String("farm_id"), Value: &rdsdatatypes.FieldMemberStringValue{Value: r.FarmID.String()}},
			{Name: aws.String("parameter_name"), Value: &rdsdatatypes.FieldMemberStringValue{Value: r.ParameterName}},
			{Name: aws.String("measured_value"), Value: &rdsdatatypes.FieldMemberDoubleValue{Value: r.MeasuredValue}},
			{Name: aws.String("unit"), Value: &rdsdatatypes.FieldMemberStringValue{Value: r.Unit}},
			{Name: aws.String("measurement_timestamp"), Value: &rdsdatatypes.FieldMemberLongValue{Value: r.MeasurementTimestamp}},
			{Name: aws.String("component_data"), Value: &rdsdatatypes.FieldMemberStringValue{Value: components}, TypeHint: rdsdatatypes.TypeHintJson},
			{Name: aws.String("data_quality"), Value: &rdsdatatypes.FieldMemberStringValue{Value: r.DataQuality}},
			{Name: aws.String("measurement_source"), Value: &rdsdatatypes.FieldMemberStringValue{Value: r.MeasurementSource}},
			{Name: aws.String("cloud_cover_percentage"), Value: &rdsdatatypes.FieldMemberDoubleValue{Value: r.CloudCoverPercentage}},
		}
	}

	_, err := s.client.BatchExecuteStatement(ctx, &rdsdata.BatchExecuteStatementInput{
		ResourceArn:   aws.String(s.clusterARN),
		SecretArn:     aws.String(s.secretARN),
		Database:      aws.String(s.database),
		Sql:           aws.String(insertSQL),
		ParameterSets: sets,
	})
	if err != nil {
		log.Error().Err(err).Str("farmId", rows[0].FarmID.String()).Int("rows", len(rows)).Msg("Monitoring insert failed")
		return fmt.Errorf("insert monitoring rows: %w", err)
	}
	log.Debug().Str("farmId", rows[0].FarmID.String()).Int("rows", len(rows)).Msg("Monitoring rows inserted")
	return nil
}
