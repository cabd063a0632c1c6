package elasticsearch

// DefaultIndexName is the index used when none is configured.
const DefaultIndexName = "fittingroom_products"

// indexMapping maps every searchable text field as a keyword so
// case-insensitive wildcard queries see the whole stored value.
const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "id":           { "type": "keyword" },
      "source":       { "type": "keyword" },
      "reference":    { "type": "keyword" },
      "product_id":   { "type": "keyword" },
      "name":         { "type": "keyword", "ignore_above": 1024 },
      "brand":        { "type": "keyword" },
      "category":     { "type": "keyword" },
      "color":        { "type": "keyword" },
      "colors":       { "type": "keyword" },
      "styles":       { "type": "keyword", "ignore_above": 1024 },
      "sizes":        { "type": "keyword" },
      "description":  { "type": "keyword", "ignore_above": 8191 },
      "price":        { "type": "double" },
      "price_cents":  { "type": "long" },
      "currency":     { "type": "keyword" },
      "availability": { "type": "keyword" },
      "image_url":    { "type": "keyword", "index": false },
      "product_url":  { "type": "keyword", "index": false },
      "scraped_at":   { "type": "date" },
      "created_at":   { "type": "date_nanos" }
    }
  }
}`
