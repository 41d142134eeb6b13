package statsdb

type statisticsMetaRow struct {
	ID                int64
	StatisticID       string
	Source            string
	UnitOfMeasurement string
	Name              string
	HasMean           bool
	HasSum            bool
}

type statisticsRow struct {
	MetadataID int64
	StartTs    int64
	State      float64
	Sum        float64
}
