package query

import (
	"encoding/json"
	"fmt"
)

// Structure is the projection requested from the API. Each field maps an
// output key to an upstream metric name.
type Structure struct {
	Date      string `json:"date"`
	DataCount string `json:"dataCount"`
	AreaName  string `json:"areaName,omitempty"`
}

type metricKey struct {
	count CountType
	data  DataType
}

// metricFields maps (count type, data type) to the upstream field name.
var metricFields = map[metricKey]string{
	{CountNew, DataCases}:               "newCasesByPublishDate",
	{CountNew, DataDeaths}:              "newDeaths28DaysByPublishDate",
	{CountNew, DataTests}:               "newTestsByPublishDate",
	{CountNew, DataAdmissions}:          "newAdmissions",
	{CountAccumulative, DataCases}:      "cumCasesByPublishDate",
	{CountAccumulative, DataDeaths}:     "cumDeaths28DaysByPublishDate",
	{CountAccumulative, DataTests}:      "cumTestsByPublishDate",
	{CountAccumulative, DataAdmissions}: "cumAdmissions",
}

// MetricField returns the upstream field name for a count/data combination.
func MetricField(countType CountType, dataType DataType) (string, bool) {
	field, ok := metricFields[metricKey{countType, dataType}]
	return field, ok
}

// BuildFilter returns the semicolon-joined filters parameter.
//
// The area name is only constrained for a single named area. Multi-area
// queries fetch every area of the type and rely on the areaName projection.
func BuildFilter(areaType AreaType, areaNames []string) string {
	filter := fmt.Sprintf("areaType=%s", areaType)
	if areaType != AreaOverview && len(areaNames) == 1 {
		filter += fmt.Sprintf(";areaName=%s", areaNames[0])
	}
	return filter
}

// BuildStructure returns the projection for a data/count combination.
func BuildStructure(dataType DataType, countType CountType, areaNames []string) Structure {
	s := Structure{Date: "date"}
	s.DataCount, _ = MetricField(countType, dataType)
	if len(areaNames) > 1 {
		s.AreaName = "areaName"
	}
	return s
}

// Encode serialises the structure as the JSON object literal the API expects.
func (s Structure) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal structure: %w", err)
	}
	return string(data), nil
}

// Filter is shorthand for BuildFilter on the spec.
func (s Spec) Filter() string {
	return BuildFilter(s.AreaType, s.Canonical().AreaNames)
}

// Structure is shorthand for BuildStructure on the spec.
func (s Spec) Structure() Structure {
	return BuildStructure(s.DataType, s.CountType, s.AreaNames)
}
