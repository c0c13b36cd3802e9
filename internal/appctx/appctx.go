// Package appctx bundles the shared backend handles (relational pool and
// search client) that request handlers receive by injection.
package appctx

import (
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ginKey is the gin context key used by Inject.
const ginKey = "appctx.pool"

// ConnectionPool holds the relational pool and the search client. Both are
// safe for concurrent use; copies share the same underlying handles.
type ConnectionPool struct {
	db     *gorm.DB
	search *elasticsearch.Client
}

// NewConnectionPool bundles db and es.
func NewConnectionPool(db *gorm.DB, es *elasticsearch.Client) ConnectionPool {
	return ConnectionPool{db: db, search: es}
}

// DB returns the relational pool.
func (p ConnectionPool) DB() *gorm.DB { return p.db }

// Search returns the search client.
func (p ConnectionPool) Search() *elasticsearch.Client { return p.search }

// ElasticOnly narrows p to its search client.
func (p ConnectionPool) ElasticOnly() ElasticPool { return ElasticPool{search: p.search} }

// Close releases the relational pool. The search client holds no resources
// that need closing.
func (p ConnectionPool) Close() error {
	if p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ElasticPool is a ConnectionPool for handlers that only need search.
type ElasticPool struct {
	search *elasticsearch.Client
}

// NewElasticPool wraps es.
func NewElasticPool(es *elasticsearch.Client) ElasticPool { return ElasticPool{search: es} }

// Search returns the search client.
func (p ElasticPool) Search() *elasticsearch.Client { return p.search }

// Inject stores p in every request's gin context.
func Inject(p ConnectionPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ginKey, p)
		c.Next()
	}
}

// From returns the pool stored by Inject.
func From(c *gin.Context) (ConnectionPool, bool) {
	v, ok := c.Get(ginKey)
	if !ok {
		return ConnectionPool{}, false
	}
	p, ok := v.(ConnectionPool)
	return p, ok
}
