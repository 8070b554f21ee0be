package gormtestsupport

import (
	"github.com/jinzhu/gorm"
	_ "github.com/lib/pq" // need to import postgres driver
	"github.com/stretchr/testify/suite"

	"github.com/webvolta/zammad/configuration"
	"github.com/webvolta/zammad/log"
	"github.com/webvolta/zammad/resource"
	"github.com/webvolta/zammad/trigger"
)

var _ suite.SetupAllSuite = &DBTestSuite{}
var _ suite.TearDownAllSuite = &DBTestSuite{}

// NewDBTestSuite instantiates a new DBTestSuite
func NewDBTestSuite(configFilePath string) DBTestSuite {
	return DBTestSuite{configFile: configFilePath}
}

// DBTestSuite is a base for tests using a gorm db
type DBTestSuite struct {
	suite.Suite
	configFile string
	DB         *gorm.DB
}

// SetupSuite implements suite.SetupAllSuite
func (s *DBTestSuite) SetupSuite() {
	resource.Require(s.T(), resource.Database)
	if err := configuration.Setup(s.configFile); err != nil {
		log.Panic(nil, map[string]interface{}{
			"err": err,
		}, "failed to setup the configuration")
	}
	db, err := gorm.Open("postgres", configuration.PostgresConfigString())
	if err != nil {
		log.Panic(nil, map[string]interface{}{
			"err":             err,
			"postgres_config": configuration.PostgresConfigString(),
		}, "failed to connect to the database")
	}
	s.DB = db
	if err := s.DB.AutoMigrate(&trigger.Trigger{}).Error; err != nil {
		log.Panic(nil, map[string]interface{}{
			"err": err,
		}, "failed to migrate the triggers table")
	}
}

// TearDownSuite implements suite.TearDownAllSuite
func (s *DBTestSuite) TearDownSuite() {
	if s.DB != nil {
		s.DB.Close()
	}
}
