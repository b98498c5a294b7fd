package services

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/napassornsp/chat-new/models"
	"github.com/napassornsp/chat-new/realtime"
	"github.com/napassornsp/chat-new/repository"
)

// SelectQuery carries the options of a generic list call. Filters are
// equality-only; ordering is a single whitelisted column.
type SelectQuery struct {
	Filters  map[string]interface{}
	OrderCol string
	OrderAsc bool
	Limit    int
	Offset   int
}

// TableGateway exposes list/insert/update/delete over the fixed entity
// registry without per-type endpoint code. Ownership scoping, column
// whitelisting and alias normalization come from the registry entries;
// one change event per affected row is published after commit.
type TableGateway interface {
	Select(user *models.User, table string, query SelectQuery) ([]map[string]interface{}, error)
	Insert(user *models.User, table string, rows []map[string]interface{}) ([]map[string]interface{}, error)
	Update(user *models.User, table string, filters, values map[string]interface{}) ([]map[string]interface{}, error)
	Delete(user *models.User, table string, filters map[string]interface{}) ([]map[string]interface{}, error)
}

type tableGateway struct {
	db        *gorm.DB
	chatRepo  repository.ChatRepository
	publisher EventPublisher
}

// NewTableGateway creates a new instance of TableGateway. The chat
// repository handles the message-insert side effects so the thread
// counters are maintained by exactly one code path.
func NewTableGateway(db *gorm.DB, chatRepo repository.ChatRepository, publisher EventPublisher) TableGateway {
	return &tableGateway{db: db, chatRepo: chatRepo, publisher: publisher}
}

// scope returns the base query for a table, restricted to the caller's
// rows when the entity type is owned. An owned table with no caller is
// an authorization error.
func (g *tableGateway) scope(desc *models.EntityDescriptor, user *models.User) (*gorm.DB, error) {
	tx := g.db
	if desc.Owned {
		if user == nil {
			return nil, ErrUnauthorized
		}
		tx = tx.Where("user_id = ?", user.ID)
	}
	return tx, nil
}

// applyFilters adds equality predicates for every filter key inside the
// declared column set. Keys outside the set are silently dropped.
func applyFilters(tx *gorm.DB, desc *models.EntityDescriptor, filters map[string]interface{}) *gorm.DB {
	for key, value := range filters {
		if desc.Columns[key] {
			tx = tx.Where(key+" = ?", value)
		}
	}
	return tx
}

// sanitizeRow normalizes one candidate write: external aliases are
// renamed to their stored columns, JSON columns get their values
// coerced, the owner field is stripped, and anything outside the
// declared writable set is silently dropped.
func sanitizeRow(desc *models.EntityDescriptor, row map[string]interface{}) map[string]interface{} {
	clean := make(map[string]interface{}, len(row))
	for key, value := range row {
		if target, ok := desc.Aliases[key]; ok {
			if _, present := row[target]; !present {
				key = target
			} else {
				continue
			}
		}
		if !desc.Writable(key) {
			continue
		}
		if desc.JSONColumns[key] {
			value = models.AsJSONColumn(value)
		}
		clean[key] = value
	}
	delete(clean, "user_id")
	return clean
}

// Select lists rows with ownership scoping, equality filters, optional
// single-column ordering and limit/offset.
func (g *tableGateway) Select(user *models.User, table string, query SelectQuery) ([]map[string]interface{}, error) {
	desc, ok := models.LookupTable(table)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	tx, err := g.scope(desc, user)
	if err != nil {
		return nil, err
	}
	tx = applyFilters(tx, desc, query.Filters)
	if query.OrderCol != "" && desc.Columns[query.OrderCol] {
		dir := "desc"
		if query.OrderAsc {
			dir = "asc"
		}
		tx = tx.Order(query.OrderCol + " " + dir)
	}
	if query.Offset > 0 {
		tx = tx.Offset(query.Offset)
	}
	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}

	records, err := desc.Find(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	rows := make([]map[string]interface{}, len(records))
	for i, rec := range records {
		rows[i] = desc.Serialize(rec)
	}
	return rows, nil
}

// Insert creates one or many rows. Owned tables get the authenticated
// caller substituted as owner regardless of what the body claimed.
// Message rows additionally require an owned parent thread and update
// its denormalized counters inside the insert transaction.
func (g *tableGateway) Insert(user *models.User, table string, rows []map[string]interface{}) ([]map[string]interface{}, error) {
	desc, ok := models.LookupTable(table)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	if len(rows) == 0 {
		return nil, ErrMissingValues
	}

	inserted := make([]map[string]interface{}, 0, len(rows))
	events := make([]realtime.Event, 0, len(rows))
	for _, raw := range rows {
		clean := sanitizeRow(desc, raw)
		if desc.Owned {
			clean["user_id"] = user.ID
		}
		rec, err := desc.Decode(clean)
		if err != nil {
			return nil, fmt.Errorf("invalid %s row: %w", table, err)
		}

		if table == "messages" {
			msg := rec.(*models.Message)
			chat, err := g.chatRepo.GetChat(msg.ChatID)
			if err != nil {
				return nil, err
			}
			if chat == nil || chat.UserID != user.ID {
				return nil, fmt.Errorf("chat %d: %w", msg.ChatID, ErrNotFound)
			}
			if err := g.chatRepo.CreateMessage(msg); err != nil {
				return nil, err
			}
		} else if err := g.db.Create(rec).Error; err != nil {
			return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
		}

		serialized := desc.Serialize(rec)
		inserted = append(inserted, serialized)
		events = append(events, realtime.NewEvent(realtime.EventInsert, table, serialized, nil))
	}

	for _, event := range events {
		g.publisher.Publish(event)
	}
	log.Printf("INFO: [TableGateway] Inserted %d row(s) into %s for user %d.", len(inserted), table, user.ID)
	return inserted, nil
}

// Update applies whitelisted values to every row matching the
// ownership-scoped filters. The owner column is never mutable, and an
// updated_at column is stamped when the entity declares one. Each
// affected row gets an event carrying both prior and new state.
func (g *tableGateway) Update(user *models.User, table string, filters, values map[string]interface{}) ([]map[string]interface{}, error) {
	desc, ok := models.LookupTable(table)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	if user == nil {
		return nil, ErrUnauthorized
	}

	tx, err := g.scope(desc, user)
	if err != nil {
		return nil, err
	}
	tx = applyFilters(tx, desc, filters).Order("id")
	records, err := desc.Find(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s rows for update: %w", table, err)
	}
	if len(records) == 0 {
		return []map[string]interface{}{}, nil
	}

	olds := make(map[uint]map[string]interface{}, len(records))
	ids := make([]uint, 0, len(records))
	for _, rec := range records {
		id := desc.ID(rec)
		ids = append(ids, id)
		olds[id] = desc.Serialize(rec)
	}

	clean := sanitizeRow(desc, values)
	if len(clean) > 0 {
		if desc.Columns["updated_at"] {
			clean["updated_at"] = time.Now().UTC()
		}
		if err := g.db.Table(desc.Table).Where("id IN ?", ids).Updates(clean).Error; err != nil {
			return nil, fmt.Errorf("failed to update %s: %w", table, err)
		}
	}

	fresh, err := desc.Find(g.db.Where("id IN ?", ids).Order("id"))
	if err != nil {
		return nil, fmt.Errorf("failed to reload %s rows after update: %w", table, err)
	}

	updated := make([]map[string]interface{}, 0, len(fresh))
	for _, rec := range fresh {
		serialized := desc.Serialize(rec)
		updated = append(updated, serialized)
		g.publisher.Publish(realtime.NewEvent(realtime.EventUpdate, table, serialized, olds[desc.ID(rec)]))
	}
	log.Printf("INFO: [TableGateway] Updated %d row(s) in %s for user %d.", len(updated), table, user.ID)
	return updated, nil
}

// Delete removes every row matching the ownership-scoped filters and
// publishes one event per removed row carrying its prior state.
func (g *tableGateway) Delete(user *models.User, table string, filters map[string]interface{}) ([]map[string]interface{}, error) {
	desc, ok := models.LookupTable(table)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	if user == nil {
		return nil, ErrUnauthorized
	}

	tx, err := g.scope(desc, user)
	if err != nil {
		return nil, err
	}
	tx = applyFilters(tx, desc, filters).Order("id")
	records, err := desc.Find(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s rows for delete: %w", table, err)
	}

	removed := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		serialized := desc.Serialize(rec)
		if err := g.db.Delete(rec).Error; err != nil {
			return nil, fmt.Errorf("failed to delete from %s: %w", table, err)
		}
		removed = append(removed, serialized)
	}

	for _, serialized := range removed {
		g.publisher.Publish(realtime.NewEvent(realtime.EventDelete, table, nil, serialized))
	}
	log.Printf("INFO: [TableGateway] Deleted %d row(s) from %s for user %d.", len(removed), table, user.ID)
	return removed, nil
}
