package vecql_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vecql/vecql"
)

func TestSelectBasic(t *testing.T) {
	q := vecql.Select("id", "name").From("users").Where("id", vecql.EQ, 1)
	assertSQL(t, q, "SELECT id, name FROM users WHERE id = $1", 1)
}

func TestSelectAllColumns(t *testing.T) {
	q := vecql.Select().From("users")
	assertSQL(t, q, "SELECT * FROM users")
}

func TestSelectDistinct(t *testing.T) {
	q := vecql.SelectDistinct("city").From("users")
	assertSQL(t, q, "SELECT DISTINCT city FROM users")
}

func TestWhereConnectors(t *testing.T) {
	q := vecql.Select("id").From("users").
		Where("age", vecql.GT, 21).
		OrWhere("vip", vecql.EQ, true).
		AndWhere("active", vecql.EQ, true)
	assertSQL(t, q,
		"SELECT id FROM users WHERE age > $1 OR vip = $2 AND active = $3",
		21, true, true)
}

func TestWhereIn(t *testing.T) {
	q := vecql.Select("id").From("users").WhereIn("id", []any{1, 2, 3})
	assertSQL(t, q, "SELECT id FROM users WHERE id IN ($1, $2, $3)", 1, 2, 3)
}

func TestWhereNotIn(t *testing.T) {
	q := vecql.Select("id").From("users").WhereNotIn("status", []any{"banned", "deleted"})
	assertSQL(t, q, "SELECT id FROM users WHERE status NOT IN ($1, $2)", "banned", "deleted")
}

func TestWhereInRequiresValues(t *testing.T) {
	_, _, err := vecql.Select("id").From("users").WhereIn("id", nil).ToSQL()
	if err == nil {
		t.Fatal("Expected error for IN with no values")
	}
}

func TestWhereBetween(t *testing.T) {
	q := vecql.Select("id").From("users").WhereBetween("age", 18, 65)
	assertSQL(t, q, "SELECT id FROM users WHERE age BETWEEN $1 AND $2", 18, 65)
}

func TestWhereNull(t *testing.T) {
	q := vecql.Select("id").From("users").WhereNull("deleted_at").WhereNotNull("email")
	assertSQL(t, q,
		"SELECT id FROM users WHERE deleted_at IS NULL AND email IS NOT NULL")
}

func TestPlaceholdersAreContiguous(t *testing.T) {
	q := vecql.Select("id").From("users").
		WhereNull("deleted_at").
		WhereIn("role", []any{"admin", "editor"}).
		Where("age", vecql.GE, 18).
		WhereBetween("created_at", "2024-01-01", "2024-12-31")

	sql, params, err := q.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	if len(params) != 5 {
		t.Fatalf("Expected 5 params, got %d", len(params))
	}
	for i := 1; i <= 5; i++ {
		placeholder := "$" + string(rune('0'+i))
		if !strings.Contains(sql, placeholder) {
			t.Errorf("Expected placeholder %s in %s", placeholder, sql)
		}
	}
	if strings.Contains(sql, "$6") {
		t.Errorf("Unexpected placeholder $6 in %s", sql)
	}
}

func TestJoins(t *testing.T) {
	q := vecql.Select("u.id", "p.title").From("users").
		LeftJoin("posts", "users.id = posts.user_id")
	assertSQL(t, q,
		"SELECT u.id, p.title FROM users LEFT JOIN posts ON users.id = posts.user_id")
}

func TestCrossJoin(t *testing.T) {
	q := vecql.Select("u.id").From("users").CrossJoin("roles")
	assertSQL(t, q, "SELECT u.id FROM users CROSS JOIN roles")
}

func TestGroupByHaving(t *testing.T) {
	q := vecql.Select("user_id").Count("*", "n").From("posts").
		GroupBy("user_id").
		Having("COUNT(*)", vecql.GT, 5)
	assertSQL(t, q,
		"SELECT user_id, COUNT(*) AS n FROM posts GROUP BY user_id HAVING COUNT(*) > $1",
		5)
}

func TestAggregatesReplaceColumnsWithoutGrouping(t *testing.T) {
	q := vecql.New().Count("*").From("users")
	assertSQL(t, q, "SELECT COUNT(*) FROM users")

	q = vecql.New().Avg("age", "avg_age").From("users").Where("active", vecql.EQ, true)
	assertSQL(t, q, "SELECT AVG(age) AS avg_age FROM users WHERE active = $1", true)
}

func TestOrderByNulls(t *testing.T) {
	q := vecql.Select("id").From("users").
		OrderByNulls("name", vecql.ASC, vecql.NullsLast).
		OrderBy("id", vecql.DESC)
	assertSQL(t, q, "SELECT id FROM users ORDER BY name ASC NULLS LAST, id DESC")
}

func TestLimitOffset(t *testing.T) {
	q := vecql.Select("id").From("users").Limit(10).Offset(20)
	assertSQL(t, q, "SELECT id FROM users LIMIT 10 OFFSET 20")
}

func TestInsertPreservesSetOrder(t *testing.T) {
	q := vecql.Insert("users").
		Set("name", "John Doe").
		Set("email", "john@example.com")
	assertSQL(t, q, "INSERT INTO users (name, email) VALUES ($1, $2)",
		"John Doe", "john@example.com")
}

func TestInsertReturning(t *testing.T) {
	q := vecql.Insert("users").Set("name", "Ada").Returning("id")
	assertSQL(t, q, "INSERT INTO users (name) VALUES ($1) RETURNING id", "Ada")
}

func TestInsertRequiresValues(t *testing.T) {
	_, _, err := vecql.Insert("users").ToSQL()
	if err == nil {
		t.Fatal("Expected error for INSERT without values")
	}
}

func TestBulkInsert(t *testing.T) {
	q := vecql.BulkInsert("users", []string{"name", "email"}, [][]any{
		{"Ada", "ada@example.com"},
		{"Grace", "grace@example.com"},
	})
	assertSQL(t, q,
		"INSERT INTO users (name, email) VALUES ($1, $2), ($3, $4)",
		"Ada", "ada@example.com", "Grace", "grace@example.com")
}

func TestUpdate(t *testing.T) {
	q := vecql.Update("users").
		Set("name", "Jane Doe").
		Where("id", vecql.EQ, 1)
	assertSQL(t, q, "UPDATE users SET name = $1 WHERE id = $2", "Jane Doe", 1)
}

func TestUpdateRequiresAssignments(t *testing.T) {
	_, _, err := vecql.Update("users").Where("id", vecql.EQ, 1).ToSQL()
	if err == nil {
		t.Fatal("Expected error for UPDATE without assignments")
	}
}

func TestDelete(t *testing.T) {
	q := vecql.Delete("users").Where("id", vecql.EQ, 1).Returning("id")
	assertSQL(t, q, "DELETE FROM users WHERE id = $1 RETURNING id", 1)
}

func TestMissingTable(t *testing.T) {
	_, _, err := vecql.Select("id").ToSQL()
	if !errors.Is(err, vecql.ErrTableRequired) {
		t.Fatalf("Expected ErrTableRequired, got %v", err)
	}
}

func TestMissingKind(t *testing.T) {
	_, _, err := vecql.New().From("users").ToSQL()
	var ike *vecql.InvalidKindError
	if !errors.As(err, &ike) {
		t.Fatalf("Expected InvalidKindError, got %v", err)
	}
}

func TestTimeValuesNormalizeToISO(t *testing.T) {
	created := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	q := vecql.Select("id").From("events").Where("created_at", vecql.GT, created)

	_, params, err := q.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	if params[0] != "2024-03-15T09:30:00Z" {
		t.Errorf("Expected RFC3339 string, got %v", params[0])
	}
}

func TestCTE(t *testing.T) {
	recent := vecql.Select("id").From("events").Where("kind", vecql.EQ, "signup")
	q := vecql.Select("id").From("recent").With("recent", recent)
	assertSQL(t, q,
		"WITH recent AS (SELECT id FROM events WHERE kind = $1) SELECT id FROM recent",
		"signup")
}

func TestRecursiveCTE(t *testing.T) {
	tree := vecql.Select("id", "parent_id").From("categories")
	q := vecql.Select("id").From("tree").WithRecursive("tree", tree)
	assertSQL(t, q,
		"WITH RECURSIVE tree AS (SELECT id, parent_id FROM categories) SELECT id FROM tree")
}

func TestUnionSharesParamCounter(t *testing.T) {
	q := vecql.Select("id").From("users").Where("active", vecql.EQ, true).
		UnionAll(vecql.Select("id").From("archived_users").Where("active", vecql.EQ, false))
	assertSQL(t, q,
		"SELECT id FROM users WHERE active = $1 UNION ALL SELECT id FROM archived_users WHERE active = $2",
		true, false)
}

func TestUnion(t *testing.T) {
	q := vecql.Select("id").From("a").Union(vecql.Select("id").From("b"))
	assertSQL(t, q, "SELECT id FROM a UNION SELECT id FROM b")
}

func TestUnionOrderByAppliesToCompound(t *testing.T) {
	q := vecql.Select("id").From("a").
		OrderBy("id", vecql.ASC).
		Union(vecql.Select("id").From("b"))
	assertSQL(t, q, "SELECT id FROM a UNION SELECT id FROM b ORDER BY id ASC")
}

func TestUnionLimitOffsetApplyToCompound(t *testing.T) {
	q := vecql.Select("id").From("a").
		Limit(1).
		Offset(2).
		UnionAll(vecql.Select("id").From("b"))
	assertSQL(t, q, "SELECT id FROM a UNION ALL SELECT id FROM b LIMIT 1 OFFSET 2")
}

func TestFromSubquery(t *testing.T) {
	sub := vecql.Select("id").From("users").Where("active", vecql.EQ, true)
	q := vecql.Select("t.id").FromQuery(sub, "t").Where("t.id", vecql.GT, 10)
	assertSQL(t, q,
		"SELECT t.id FROM (SELECT id FROM users WHERE active = $1) t WHERE t.id > $2",
		true, 10)
}

func TestSubqueryMustBeSelect(t *testing.T) {
	sub := vecql.Delete("users")
	_, _, err := vecql.Select("t.id").FromQuery(sub, "t").ToSQL()
	if err == nil {
		t.Fatal("Expected error for non-SELECT subquery")
	}
}

func TestWindowFunction(t *testing.T) {
	q := vecql.Select("name").From("employees").
		Window("ROW_NUMBER", []string{"dept"},
			[]vecql.OrderBy{{Column: "salary", Direction: vecql.DESC}}, "rank")
	assertSQL(t, q,
		"SELECT name, ROW_NUMBER() OVER (PARTITION BY dept ORDER BY salary DESC) AS rank FROM employees")
}

func TestJSONPath(t *testing.T) {
	q := vecql.Select("id").From("events").JSONPath("payload", "user.name", "user_name")
	assertSQL(t, q,
		"SELECT id, payload->'user'->>'name' AS user_name FROM events")
}

func TestJSONPathSingleSegment(t *testing.T) {
	q := vecql.Select().From("events").JSONPath("payload", "status", "status")
	assertSQL(t, q, "SELECT payload->>'status' AS status FROM events")
}

func TestCaseExpression(t *testing.T) {
	q := vecql.Select("name").From("users").Case(vecql.CaseExpression{
		Whens: []vecql.CaseWhen{
			{Column: "age", Operator: vecql.GE, Value: 18, Result: "adult"},
		},
		Else:  "minor",
		Alias: "bracket",
	})
	assertSQL(t, q,
		"SELECT name, CASE WHEN age >= $1 THEN $2 ELSE $3 END AS bracket FROM users",
		18, "adult", "minor")
}

func TestTextSearchLikeFallback(t *testing.T) {
	q := vecql.Select().From("articles").TextSearch("golang", "title", "body")
	assertSQL(t, q,
		"SELECT * FROM articles WHERE (title LIKE $1 OR body LIKE $2)",
		"%golang%", "%golang%")
}

func TestTextSearchFullTextDialect(t *testing.T) {
	q := vecql.Select("id").From("articles").
		UseVectorDB("pgvector").
		TextSearch("golang", "title", "body")
	assertSQL(t, q,
		"SELECT id FROM articles WHERE to_tsvector('english', coalesce(title, '') || ' ' || coalesce(body, '')) @@ plainto_tsquery('english', $1)",
		"golang")
}

func TestRawSQLRewritesPlaceholders(t *testing.T) {
	q := vecql.Select("id").From("users").
		Where("active", vecql.EQ, true).
		RawSQL("lower(email) = ?", "ada@example.com")
	assertSQL(t, q,
		"SELECT id FROM users WHERE active = $1 AND lower(email) = $2",
		true, "ada@example.com")
}

func TestRawSQLIgnoresQuotedQuestionMarks(t *testing.T) {
	q := vecql.Select("id").From("users").RawSQL("note = '?' AND id = ?", 5)
	assertSQL(t, q, "SELECT id FROM users WHERE note = '?' AND id = $1", 5)
}

func TestRawSQLParamCountMismatch(t *testing.T) {
	_, _, err := vecql.Select("id").From("users").RawSQL("a = ? AND b = ?", 1).ToSQL()
	if err == nil {
		t.Fatal("Expected error for too few raw params")
	}
	_, _, err = vecql.Select("id").From("users").RawSQL("a = ?", 1, 2).ToSQL()
	if err == nil {
		t.Fatal("Expected error for unused raw params")
	}
}

func TestTimeRange(t *testing.T) {
	// Friday, March 15 2024.
	restore := vecql.SetNow(func() time.Time {
		return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	})
	defer restore()

	tests := []struct {
		name  string
		start string
		end   string
	}{
		{vecql.RangeToday, "2024-03-15T00:00:00Z", "2024-03-16T00:00:00Z"},
		{vecql.RangeYesterday, "2024-03-14T00:00:00Z", "2024-03-15T00:00:00Z"},
		{vecql.RangeThisWeek, "2024-03-10T00:00:00Z", "2024-03-17T00:00:00Z"},
		{vecql.RangeLastWeek, "2024-03-03T00:00:00Z", "2024-03-10T00:00:00Z"},
		{vecql.RangeThisMonth, "2024-03-01T00:00:00Z", "2024-04-01T00:00:00Z"},
		{vecql.RangeLastMonth, "2024-02-01T00:00:00Z", "2024-03-01T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := vecql.Select("id").From("events").TimeRange("created_at", tt.name)
			assertSQL(t, q,
				"SELECT id FROM events WHERE created_at BETWEEN $1 AND $2",
				tt.start, tt.end)
		})
	}
}

func TestTimeRangeUnknownName(t *testing.T) {
	q := vecql.Select("id").From("events").TimeRange("created_at", "fortnight")
	if q.Err() == nil {
		t.Fatal("Expected error for unknown time range name")
	}
}

func TestGeoRadius(t *testing.T) {
	q := vecql.Select("id").From("places").GeoRadius("lat", "lng", 40.7, -74.0, 10)
	assertSQL(t, q,
		"SELECT id FROM places WHERE (6371 * acos(cos(radians($1)) * cos(radians(lat)) * cos(radians(lng) - radians($2)) + sin(radians($3)) * sin(radians(lat)))) <= $4",
		40.7, -74.0, 40.7, 10.0)
}

func TestToSQLIsPure(t *testing.T) {
	q := vecql.Select("id").From("users").Where("id", vecql.EQ, 1)

	first, firstParams, err := q.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	second, secondParams, err := q.ToSQL()
	if err != nil {
		t.Fatalf("Second ToSQL failed: %v", err)
	}
	if first != second {
		t.Errorf("Repeated compiles differ: %q vs %q", first, second)
	}
	if len(firstParams) != len(secondParams) {
		t.Errorf("Repeated compiles bound different params: %v vs %v", firstParams, secondParams)
	}
}
