package storage

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS products (
	id              BIGINT AUTO_INCREMENT PRIMARY KEY,
	product_id      BIGINT UNSIGNED NOT NULL,
	name            VARCHAR(255) NOT NULL,
	production_date VARCHAR(64) NOT NULL,
	expiry_date     VARCHAR(64) NOT NULL,
	medical_info    TEXT NOT NULL,
	owner           VARCHAR(64) NOT NULL DEFAULT '',
	added_at        DATETIME(6) NOT NULL,
	INDEX idx_products_product_id (product_id)
)`

// product_id is deliberately not unique: the mirror keeps duplicate writes.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS products (
	id              BIGSERIAL PRIMARY KEY,
	product_id      BIGINT NOT NULL,
	name            TEXT NOT NULL,
	production_date TEXT NOT NULL,
	expiry_date     TEXT NOT NULL,
	medical_info    TEXT NOT NULL,
	owner           TEXT NOT NULL DEFAULT '',
	added_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_product_id ON products (product_id)`
