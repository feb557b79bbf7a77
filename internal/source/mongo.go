package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/glendisraptor/analytics-connector/internal/vault"
)

// mongoAdapter treats collections as tables. Documents are flattened into a
// flat row shape (nested fields become dotted column names) so the relational
// load stage can handle them.
type mongoAdapter struct {
	client *mongo.Client
	dbName string
}

func openMongo(creds vault.Credentials) (Adapter, error) {
	uri := creds.ConnString
	if uri == "" {
		port := creds.Port
		if port == 0 {
			port = 27017
		}
		u := url.URL{
			Scheme: "mongodb",
			Host:   fmt.Sprintf("%s:%d", creds.Host, port),
		}
		if creds.Username != "" {
			u.User = url.UserPassword(creds.Username, creds.Password)
		}
		uri = u.String()
	}
	if creds.Database == "" {
		return nil, fmt.Errorf("mongodb source requires a database name")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("open mongodb source: %w", err)
	}
	return &mongoAdapter{client: client, dbName: creds.Database}, nil
}

func (a *mongoAdapter) Test(ctx context.Context) bool {
	return a.client.Ping(ctx, nil) == nil
}

func (a *mongoAdapter) ListTables(ctx context.Context) ([]string, error) {
	names, err := a.client.Database(a.dbName).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (a *mongoAdapter) ExtractTable(ctx context.Context, name string, limit int) (*Table, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := a.client.Database(a.dbName).Collection(name).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}
	defer cursor.Close(ctx)

	var flat []map[string]any
	colSet := map[string]struct{}{}
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		row := map[string]any{}
		flattenDocument("", doc, row)
		for k := range row {
			colSet[k] = struct{}{}
		}
		flat = append(flat, row)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(colSet))
	for k := range colSet {
		names = append(names, k)
	}
	sort.Strings(names)

	rows := make([][]any, 0, len(flat))
	for _, doc := range flat {
		row := make([]any, len(names))
		for i, col := range names {
			row[i] = doc[col]
		}
		rows = append(rows, row)
	}

	return &Table{Name: name, Columns: inferColumns(names, rows), Rows: rows}, nil
}

func (a *mongoAdapter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.client.Disconnect(ctx)
}

// flattenDocument writes doc into out, joining nested keys with dots and
// reducing BSON-specific values to the plain row value set.
func flattenDocument(prefix string, doc bson.M, out map[string]any) {
	for key, value := range doc {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		switch v := value.(type) {
		case bson.M:
			flattenDocument(name, v, out)
		case bson.D:
			flattenDocument(name, v.Map(), out)
		default:
			out[name] = normalizeBSONValue(v)
		}
	}
}

func normalizeBSONValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC()
	case primitive.Decimal128:
		return v.String()
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case int64, float64, bool, string, time.Time:
		return v
	case bson.M:
		// Only reachable inside arrays; top-level documents are flattened
		// before values get here.
		m := make(map[string]any, len(v))
		for k, item := range v {
			m[k] = normalizeBSONValue(item)
		}
		return m
	case bson.D:
		return normalizeBSONValue(v.Map())
	case primitive.A:
		// Arrays have no relational shape; keep them as JSON text.
		encoded := make([]any, len(v))
		for i, item := range v {
			encoded[i] = normalizeBSONValue(item)
		}
		if b, err := json.Marshal(encoded); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
